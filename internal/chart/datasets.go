package chart

// Dataset is one line of the performance chart, aligned by index with the
// projection labels.
type Dataset struct {
	Label string    `json:"label"`
	Color string    `json:"color"`
	Data  []float64 `json:"data"`
}

// Projection is what the presentation layer needs to draw the chart.
type Projection struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Project snapshots the buffer into chart datasets. Labels and data are read
// under one lock so they always line up.
func (b *Buffer) Project() Projection {
	samples := b.Samples()

	labels := make([]string, len(samples))
	total := make([]float64, len(samples))
	invested := make([]float64, len(samples))
	cash := make([]float64, len(samples))
	for i, s := range samples {
		labels[i] = s.Time
		total[i] = s.TotalValue
		invested[i] = s.PortfolioValue
		cash[i] = s.Cash
	}

	return Projection{
		Labels: labels,
		Datasets: []Dataset{
			{Label: "Total Value", Color: "#32b8c6", Data: total},
			{Label: "Portfolio", Color: "#00ff41", Data: invested},
			{Label: "Cash", Color: "#ffaa00", Data: cash},
		},
	}
}
