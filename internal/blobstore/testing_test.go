package blobstore

import (
	"io"

	"github.com/rs/zerolog"

	"fanai-server/internal/infra"
)

func testLogger() infra.Logger {
	return zerolog.New(io.Discard)
}
