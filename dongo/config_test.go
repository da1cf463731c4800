package dongo_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dongo-odm/dongo/dongo"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  dongo.Config
		ok   bool
	}{
		{"empty", dongo.Config{}, true},
		{"single host", dongo.Config{Host: "db.internal", Port: 27018}, true},
		{"replica set", dongo.Config{Hosts: []string{"a:27017", "b"}, ReplicaSet: "rs0"}, true},
		{"hosts without replica set", dongo.Config{Hosts: []string{"a", "b"}}, false},
		{"port out of range", dongo.Config{Port: 70000}, false},
		{"bad host port", dongo.Config{Hosts: []string{"a:notaport"}, ReplicaSet: "rs0"}, false},
		{"empty host", dongo.Config{Hosts: []string{""}, ReplicaSet: "rs0"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, dongo.ErrConnect) {
				t.Errorf("err = %v, want ErrConnect", err)
			}
		})
	}
}

func TestConfigAddrs(t *testing.T) {
	tests := []struct {
		name string
		cfg  dongo.Config
		want []string
	}{
		{"default port", dongo.Config{Host: "db"}, []string{"db:27017"}},
		{"explicit port", dongo.Config{Host: "db", Port: 27018}, []string{"db:27018"}},
		{"replica hosts", dongo.Config{Hosts: []string{"a", "b:27019"}, Port: 27018, ReplicaSet: "rs0"}, []string{"a:27018", "b:27019"}},
		{"uri only", dongo.Config{URI: "store://elsewhere"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Addrs(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dongo.yaml")
	body := []byte("database: app\nhosts:\n  - a\n  - b:27019\nreplica_set: rs0\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := dongo.LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database != "app" || cfg.ReplicaSet != "rs0" {
		t.Errorf("parsed %+v", cfg)
	}
	if want := []string{"a:27017", "b:27019"}; !reflect.DeepEqual(cfg.Addrs(), want) {
		t.Errorf("addrs = %v, want %v", cfg.Addrs(), want)
	}

	if _, err := dongo.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should error")
	}

	invalid := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(invalid, []byte("hosts: [a, b]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := dongo.LoadConfig(invalid); !errors.Is(err, dongo.ErrConnect) {
		t.Errorf("err = %v, want ErrConnect", err)
	}
}
