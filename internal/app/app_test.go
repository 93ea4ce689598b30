package app

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"og-mm-bot/internal/config"
)

func TestNewRejectsDisabledMaker(t *testing.T) {
	cfg := &config.Config{}
	if _, err := New(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error when maker is disabled")
	}
}

func TestNewRequiresPrivateKey(t *testing.T) {
	t.Setenv("MM_PRIVATE_KEY", "")
	cfg := &config.Config{}
	cfg.Maker.Enabled = true
	if _, err := New(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error without MM_PRIVATE_KEY")
	}
}
