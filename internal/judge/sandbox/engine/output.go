package engine

import (
	"bytes"
	"sync"
)

// limitedBuffer keeps at most limit bytes and signals once when a write
// would pass the ceiling.
type limitedBuffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	limit    int64
	exceeded bool
	onExceed func()
}

func newLimitedBuffer(limit int64, onExceed func()) *limitedBuffer {
	return &limitedBuffer{limit: limit, onExceed: onExceed}
}

// Write never fails so the child is not killed by EPIPE before we decide.
func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.exceeded {
		return len(p), nil
	}
	room := b.limit - int64(b.buf.Len())
	if int64(len(p)) <= room {
		b.buf.Write(p)
		return len(p), nil
	}
	if room > 0 {
		b.buf.Write(p[:room])
	}
	b.exceeded = true
	if b.onExceed != nil {
		b.onExceed()
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *limitedBuffer) Exceeded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exceeded
}
