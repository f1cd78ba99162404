package backtest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// SliceProvider 以固定序列提供行情。
type SliceProvider struct {
	bars  []Bar
	index int
}

func NewSliceProvider(bars []Bar) *SliceProvider {
	return &SliceProvider{bars: bars}
}

func (p *SliceProvider) Next(ctx context.Context) (Bar, bool, error) {
	if err := ctx.Err(); err != nil {
		return Bar{}, false, err
	}
	if p.index >= len(p.bars) {
		return Bar{}, false, nil
	}
	bar := p.bars[p.index]
	p.index++
	return bar, true, nil
}

// CSVProvider 读取 ts,spot,pair_a,pair_b[,funding] 格式的行情，首行表头可选。
// ts 支持 RFC3339 与 Unix 秒/毫秒。
type CSVProvider struct {
	reader *csv.Reader
	line   int
}

func NewCSVProvider(r io.Reader) *CSVProvider {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	return &CSVProvider{reader: reader}
}

func (p *CSVProvider) Next(ctx context.Context) (Bar, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Bar{}, false, err
		}

		record, err := p.reader.Read()
		if errors.Is(err, io.EOF) {
			return Bar{}, false, nil
		}
		if err != nil {
			return Bar{}, false, fmt.Errorf("backtest: 读取CSV失败: %w", err)
		}
		p.line++

		if p.line == 1 && isHeader(record) {
			continue
		}

		bar, err := parseRecord(record)
		if err != nil {
			return Bar{}, false, fmt.Errorf("backtest: 第%d行: %w", p.line, err)
		}
		return bar, true, nil
	}
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	_, err := parseTimestamp(record[0])
	return err != nil
}

func parseRecord(record []string) (Bar, error) {
	if len(record) < 4 {
		return Bar{}, fmt.Errorf("字段数不足: %d", len(record))
	}

	ts, err := parseTimestamp(record[0])
	if err != nil {
		return Bar{}, err
	}

	values := make([]float64, 4)
	for i := 1; i < len(record) && i <= 4; i++ {
		raw := strings.TrimSpace(record[i])
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Bar{}, fmt.Errorf("解析第%d列失败: %w", i+1, err)
		}
		values[i-1] = v
	}

	if values[0] <= 0 || values[1] <= 0 || values[2] <= 0 {
		return Bar{}, errors.New("价格必须大于0")
	}

	return Bar{TS: ts, Spot: values[0], PairA: values[1], PairB: values[2], Funding: values[3]}, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析时间 %q", raw)
	}
	// 13位及以上视为毫秒
	if n >= 1e12 {
		return time.UnixMilli(n).UTC(), nil
	}
	return time.Unix(n, 0).UTC(), nil
}
