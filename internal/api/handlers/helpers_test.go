package handlers_test

import (
	"io"
	"log/slog"

	"github.com/hugh/go-equip/internal/authz"
	"github.com/hugh/go-equip/internal/orgcontext"
	"gorm.io/gorm"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGate(db *gorm.DB) *authz.Gate {
	store := orgcontext.NewStore(db)
	return authz.NewGate(store, store, quietLogger())
}
