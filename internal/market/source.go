package market

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Source 数据采集接口：K线、期权链与最新价。
// 所有实现的失败都应包装为 *SourceError，上层据此做 fail-closed 处理。
type Source interface {
	FetchCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]Candle, error)

	FetchOptionChain(ctx context.Context, symbol string) (*OptionChain, error)

	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// SourceError 数据源错误：标记失败的操作与标的，供网关层归类。
type SourceError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("market source %s(%s): %v", e.Op, e.Symbol, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func NewSourceError(op, symbol string, err error) *SourceError {
	return &SourceError{Op: op, Symbol: symbol, Err: err}
}

func IsSourceError(err error) bool {
	var se *SourceError
	return errors.As(err, &se)
}
