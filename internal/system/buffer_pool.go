package system

import (
	"image"
	"sync"
)

// FramePool recycles *image.RGBA frame buffers by size so the per-frame
// render/encode path does not allocate a full frame every tick.
type FramePool struct {
	pools map[image.Point]*sync.Pool
	mu    sync.RWMutex
}

func NewFramePool() *FramePool {
	return &FramePool{pools: make(map[image.Point]*sync.Pool)}
}

var globalPool = NewFramePool()

// GetFrame returns a w×h buffer from the shared pool. Its contents are
// undefined; callers that draw partially must clear it first.
func GetFrame(w, h int) *image.RGBA {
	return globalPool.Get(w, h)
}

// PutFrame hands a buffer back to the shared pool.
func PutFrame(img *image.RGBA) {
	globalPool.Put(img)
}

func (p *FramePool) Get(w, h int) *image.RGBA {
	key := image.Pt(w, h)
	p.mu.RLock()
	pool, exists := p.pools[key]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		pool, exists = p.pools[key]
		if !exists {
			pool = &sync.Pool{
				New: func() any {
					return image.NewRGBA(image.Rect(0, 0, key.X, key.Y))
				},
			}
			p.pools[key] = pool
		}
		p.mu.Unlock()
	}

	return pool.Get().(*image.RGBA)
}

func (p *FramePool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) {
		return
	}
	key := img.Rect.Size()
	p.mu.RLock()
	pool, exists := p.pools[key]
	p.mu.RUnlock()

	if exists {
		pool.Put(img)
	}
}
