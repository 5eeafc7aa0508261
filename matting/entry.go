package matting

import (
	"bytes"
	"encoding/gob"

	"github.com/chaos-io/bgmatte/matte"
)

// cacheEntry 缓存里存的内容，命中时要还原出完整的 Result
type cacheEntry struct {
	PNG      []byte
	Report   *matte.Report
	Format   string
	HadAlpha bool
	Width    int
	Height   int
}

func encodeEntry(e *cacheEntry) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := gob.NewEncoder(buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeEntry 解出来的切片都是新分配的，不和缓存共享内存
func decodeEntry(b []byte) (*cacheEntry, error) {
	e := &cacheEntry{}
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(e); err != nil {
		return nil, err
	}
	return e, nil
}
