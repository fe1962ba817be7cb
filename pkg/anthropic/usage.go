package anthropic

import "go.uber.org/zap"

// Usage counts tokens of one or more calls.
type Usage struct {
	Input      int64
	Output     int64
	CacheWrite int64
	CacheRead  int64
}

// Add accumulates o into u.
func (u *Usage) Add(o Usage) {
	u.Input += o.Input
	u.Output += o.Output
	u.CacheWrite += o.CacheWrite
	u.CacheRead += o.CacheRead
}

// price is USD per million tokens.
type price struct {
	input, output float64
}

var prices = map[string]price{
	"claude-haiku-4-5-20251001":  {input: 1.00, output: 5.00},
	"claude-sonnet-4-5-20250929": {input: 3.00, output: 15.00},
}

// Cache writes bill at 1.25x input, cache reads at 0.1x.
const (
	cacheWriteMul = 1.25
	cacheReadMul  = 0.1
)

// Cost estimates the USD cost of u for model; unknown models cost 0.
func (u Usage) Cost(model string) float64 {
	p, ok := prices[model]
	if !ok {
		return 0
	}
	in := float64(u.Input) + float64(u.CacheWrite)*cacheWriteMul + float64(u.CacheRead)*cacheReadMul
	return (in*p.input + float64(u.Output)*p.output) / 1e6
}

// Log writes u and its estimated cost at info level.
func (u Usage) Log(model, phase string) {
	zap.L().Info("anthropic: usage",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.Input),
		zap.Int64("output_tokens", u.Output),
		zap.Int64("cache_write_tokens", u.CacheWrite),
		zap.Int64("cache_read_tokens", u.CacheRead),
		zap.Float64("estimated_cost_usd", u.Cost(model)),
	)
}
