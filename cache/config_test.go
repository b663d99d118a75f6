package cache

import (
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: DefaultConfig()},
		{name: "renamed", cfg: DefaultConfig().WithName("bid").WithTTL(30 * time.Second)},
		{name: "missing name", cfg: DefaultConfig().WithName(""), wantErr: true},
		{name: "zero size", cfg: Config{Name: "x", DefaultTTL: time.Second}, wantErr: true},
		{name: "negative size", cfg: Config{Name: "x", MaxSize: -1, DefaultTTL: time.Second}, wantErr: true},
		{name: "zero ttl", cfg: Config{Name: "x", MaxSize: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !goerrors.IsValidation(err) {
				t.Errorf("expected a validation error, got %T", err)
			}
		})
	}
}

func TestNewStore_InvalidConfig(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected NewStore to reject an empty config")
	}
}
