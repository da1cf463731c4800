package memdriver

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dongo-odm/dongo/dongo/driver"
)

const (
	snapshotMagic   = "DNGO"
	snapshotVersion = 1

	lockTimeout    = 3 * time.Second
	lockRetryDelay = 100 * time.Millisecond
)

// snapshotHeader precedes the compressed body on disk.
type snapshotHeader struct {
	Magic    [4]byte
	Version  uint8
	Flags    uint8
	Reserved [2]byte
}

// snapshotData is the msgpack-encoded body: every namespace's documents
// in insertion order.
type snapshotData struct {
	Namespaces map[string][]driver.Document `msgpack:"namespaces"`
	Metadata   map[string]interface{}       `msgpack:"metadata,omitempty"`
}

// flagUncompressed marks a body stored raw because lz4 could not
// shrink it.
const flagUncompressed = 0x01

func writeHeader(w io.Writer, flags uint8) error {
	header := snapshotHeader{
		Magic:   [4]byte{'D', 'N', 'G', 'O'},
		Version: snapshotVersion,
		Flags:   flags,
	}
	return binary.Write(w, binary.LittleEndian, header)
}

func readHeader(r io.Reader) (uint8, error) {
	var header snapshotHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return 0, fmt.Errorf("reading header: %w", err)
	}
	if string(header.Magic[:]) != snapshotMagic {
		return 0, fmt.Errorf("invalid snapshot format: expected %s, got %s", snapshotMagic, header.Magic[:])
	}
	if header.Version != snapshotVersion {
		return 0, fmt.Errorf("unsupported snapshot version: %d", header.Version)
	}
	return header.Flags, nil
}

// withFileLock runs fn while holding the cross-process snapshot lock.
func (d *Driver) withFileLock(fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := d.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("memdriver: acquiring snapshot lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("memdriver: snapshot lock is held by another process")
	}
	defer func() { _ = d.lock.Unlock() }()
	return fn()
}

// Flush writes the current state to the snapshot file. It is a no-op
// when no snapshot file is configured.
func (d *Driver) Flush() error {
	if d.path == "" {
		return nil
	}
	return d.withFileLock(func() error {
		d.mu.RLock()
		data := snapshotData{
			Namespaces: make(map[string][]driver.Document, len(d.namespaces)),
			Metadata: map[string]interface{}{
				"saved_at": time.Now().UTC().Format(time.RFC3339),
			},
		}
		// Copy the documents while locked; the live maps keep mutating
		// under the write lock once it is released.
		for key, c := range d.namespaces {
			docs := make([]driver.Document, 0, len(c.order))
			for _, id := range c.order {
				docs = append(docs, deepCopy(c.docs[id]).(driver.Document))
			}
			data.Namespaces[key] = docs
		}
		d.mu.RUnlock()

		encoded, err := msgpack.Marshal(&data)
		if err != nil {
			return fmt.Errorf("memdriver: encoding snapshot: %w", err)
		}
		compressed := make([]byte, lz4.CompressBlockBound(len(encoded)))
		var hashTable [1 << 16]int
		n, err := lz4.CompressBlock(encoded, compressed, hashTable[:])
		if err != nil {
			return fmt.Errorf("memdriver: compressing snapshot: %w", err)
		}
		// lz4 reports incompressible input as n == 0; store those raw.
		var flags uint8
		body := compressed[:n]
		if n == 0 {
			flags = flagUncompressed
			body = encoded
		}

		file, err := os.Create(d.path)
		if err != nil {
			return fmt.Errorf("memdriver: creating snapshot file: %w", err)
		}
		defer func() { _ = file.Close() }()
		if err := writeHeader(file, flags); err != nil {
			return fmt.Errorf("memdriver: writing snapshot header: %w", err)
		}
		if err := binary.Write(file, binary.LittleEndian, uint64(len(encoded))); err != nil {
			return fmt.Errorf("memdriver: writing snapshot length: %w", err)
		}
		if _, err := file.Write(body); err != nil {
			return fmt.Errorf("memdriver: writing snapshot body: %w", err)
		}
		d.logger.Debug("snapshot flushed", "path", d.path, "namespaces", len(data.Namespaces))
		return nil
	})
}

// load reads the snapshot file into memory. A missing file is an empty
// store, not an error.
func (d *Driver) load() error {
	return d.withFileLock(func() error {
		file, err := os.Open(d.path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("memdriver: opening snapshot file: %w", err)
		}
		defer func() { _ = file.Close() }()

		flags, err := readHeader(file)
		if err != nil {
			return fmt.Errorf("memdriver: %w", err)
		}
		var rawLen uint64
		if err := binary.Read(file, binary.LittleEndian, &rawLen); err != nil {
			return fmt.Errorf("memdriver: reading snapshot length: %w", err)
		}
		body, err := io.ReadAll(file)
		if err != nil {
			return fmt.Errorf("memdriver: reading snapshot body: %w", err)
		}
		encoded := body
		if flags&flagUncompressed == 0 {
			decompressed := make([]byte, rawLen)
			n, err := lz4.UncompressBlock(body, decompressed)
			if err != nil {
				return fmt.Errorf("memdriver: decompressing snapshot: %w", err)
			}
			encoded = decompressed[:n]
		}
		var data snapshotData
		if err := msgpack.Unmarshal(encoded, &data); err != nil {
			return fmt.Errorf("memdriver: decoding snapshot: %w", err)
		}

		d.mu.Lock()
		defer d.mu.Unlock()
		for key, docs := range data.Namespaces {
			c := &collection{docs: make(map[string]driver.Document, len(docs))}
			for _, doc := range docs {
				id, _ := doc["_id"].(string)
				if id == "" {
					id = d.newObjectID()
					doc["_id"] = id
				}
				c.docs[id] = normalizeDocument(doc)
				c.order = append(c.order, id)
			}
			d.namespaces[key] = c
		}
		d.logger.Debug("snapshot loaded", "path", d.path, "namespaces", len(data.Namespaces))
		return nil
	})
}

// normalizeDocument rewrites msgpack's map[interface{}]interface{}
// decodings into the string-keyed maps the matcher works on.
func normalizeDocument(doc driver.Document) driver.Document {
	out := make(driver.Document, len(doc))
	for key, val := range doc {
		out[key] = normalizeValue(val)
	}
	return out
}

func normalizeValue(val interface{}) interface{} {
	switch v := val.(type) {
	case map[string]interface{}:
		return normalizeDocument(v)
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, inner := range v {
			out[fmt.Sprintf("%v", key)] = normalizeValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, inner := range v {
			out[i] = normalizeValue(inner)
		}
		return out
	default:
		return val
	}
}
