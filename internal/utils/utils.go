package utils

import (
	"fmt"
	"hash/crc32"

	"github.com/oklog/ulid/v2"
)

var crcTable = crc32.MakeTable(crc32.IEEE)

// Version returns the quoted CRC32 of data, used as the Version header of a
// rendered document.
func Version(data []byte) string {
	return fmt.Sprintf("\"%08x\"", crc32.Checksum(data, crcTable))
}

// NewID returns a sortable id for connections and subscriptions.
func NewID() string {
	return ulid.Make().String()
}
