package core

import "github.com/spaghettifunk/octoon/engine/containers"

const AVG_COUNT uint8 = 30

// FrameMetrics keeps a rolling frame-time average and a frames-per-second
// counter for the frame driver.
type FrameMetrics struct {
	msTimes            *containers.RingQueue[float64]
	msTotal            float64
	msAVG              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
	skippedPasses      uint64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{msTimes: containers.NewRingQueue[float64](int(AVG_COUNT))}
}

// Update takes the elapsed frame time in seconds.
func (m *FrameMetrics) Update(frameElapsedTime float64) {
	frameMS := frameElapsedTime * 1000.0
	// rolling average over the last AVG_COUNT frames
	if dropped, evicted := m.msTimes.Push(frameMS); evicted {
		m.msTotal -= dropped
	}
	m.msTotal += frameMS
	m.msAVG = m.msTotal / float64(m.msTimes.Len())

	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	m.frames++
}

func (m *FrameMetrics) PassSkipped() {
	m.skippedPasses++
}

func (m *FrameMetrics) SkippedPasses() uint64 {
	return m.skippedPasses
}

func (m *FrameMetrics) FPS() float64 {
	return m.fps
}

func (m *FrameMetrics) FrameTime() float64 {
	return m.msAVG
}

func (m *FrameMetrics) Frame() (float64, float64) {
	return m.fps, m.msAVG
}
