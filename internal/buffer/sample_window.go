// internal/buffer/sample_window.go
package buffer

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/smallnest/ringbuffer"

	"emg-service/internal/model"
)

const bytesPerSample = 8

// SampleWindow keeps the most recent samples in arrival order. Once full,
// each push evicts the oldest sample.
type SampleWindow struct {
	buffer   *ringbuffer.RingBuffer
	capacity int
	mu       sync.Mutex
}

// NewSampleWindow creates a window holding up to capacity samples
func NewSampleWindow(capacity int) *SampleWindow {
	if capacity <= 0 {
		capacity = 1
	}
	return &SampleWindow{
		buffer:   ringbuffer.New(capacity * bytesPerSample),
		capacity: capacity,
	}
}

// Push appends a sample, evicting the oldest one when the window is full
func (w *SampleWindow) Push(sample model.Sample) error {
	var encoded [bytesPerSample]byte
	binary.LittleEndian.PutUint64(encoded[:], math.Float64bits(float64(sample)))

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buffer.Free() < bytesPerSample {
		var evicted [bytesPerSample]byte
		if _, err := w.buffer.Read(evicted[:]); err != nil {
			return fmt.Errorf("evict oldest sample: %w", err)
		}
	}

	if _, err := w.buffer.Write(encoded[:]); err != nil {
		return fmt.Errorf("push sample: %w", err)
	}
	return nil
}

// Snapshot returns the buffered samples, oldest first
func (w *SampleWindow) Snapshot() []model.Sample {
	w.mu.Lock()
	defer w.mu.Unlock()

	length := w.buffer.Length()
	samples := make([]model.Sample, 0, length/bytesPerSample)
	if length == 0 {
		return samples
	}

	// The ring only exposes destructive reads, so the contents are written
	// back after decoding
	raw := make([]byte, length)
	n, err := w.buffer.Read(raw)
	if err != nil {
		return samples
	}
	raw = raw[:n]
	w.buffer.Write(raw)

	for i := 0; i+bytesPerSample <= len(raw); i += bytesPerSample {
		bits := binary.LittleEndian.Uint64(raw[i : i+bytesPerSample])
		samples = append(samples, model.Sample(math.Float64frombits(bits)))
	}
	return samples
}

// Capacity returns the maximum number of samples kept
func (w *SampleWindow) Capacity() int {
	return w.capacity
}

// Reset drops all samples
func (w *SampleWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer.Reset()
}
