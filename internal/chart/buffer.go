package chart

import (
	"sync"
	"time"

	"bot_dashboard/internal/models"
)

// Capacity is the number of samples the performance chart keeps.
const Capacity = 30

// Buffer is a FIFO-evicting window of chart samples. Projections are always
// computed from the current contents.
type Buffer struct {
	mu      sync.RWMutex
	samples []models.ChartSample
}

func NewBuffer() *Buffer {
	return &Buffer{samples: make([]models.ChartSample, 0, Capacity+1)}
}

// Push appends a sample and drops the oldest one once capacity is exceeded.
func (b *Buffer) Push(s models.ChartSample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, s)
	if len(b.samples) > Capacity {
		b.samples = append(b.samples[:0], b.samples[1:]...)
	}
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Samples returns a copy of the buffer, oldest first.
func (b *Buffer) Samples() []models.ChartSample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.ChartSample, len(b.samples))
	copy(out, b.samples)
	return out
}

func (b *Buffer) Labels() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.samples))
	for i, s := range b.samples {
		out[i] = s.Time
	}
	return out
}

func (b *Buffer) TotalValues() []float64 {
	return b.project(func(s models.ChartSample) float64 { return s.TotalValue })
}

func (b *Buffer) PortfolioValues() []float64 {
	return b.project(func(s models.ChartSample) float64 { return s.PortfolioValue })
}

func (b *Buffer) CashValues() []float64 {
	return b.project(func(s models.ChartSample) float64 { return s.Cash })
}

func (b *Buffer) project(field func(models.ChartSample) float64) []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]float64, len(b.samples))
	for i, s := range b.samples {
		out[i] = field(s)
	}
	return out
}

// SampleFromPortfolio derives a chart point from a portfolio snapshot.
func SampleFromPortfolio(p models.PortfolioSnapshot, at time.Time) models.ChartSample {
	total, _ := p.TotalValue.Float64()
	cash, _ := p.Cash.Float64()
	invested, _ := p.PortfolioValue().Float64()
	return models.ChartSample{
		Time:           at.Format("15:04:05"),
		TotalValue:     total,
		PortfolioValue: invested,
		Cash:           cash,
	}
}
