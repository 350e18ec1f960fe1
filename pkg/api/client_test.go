package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneymaster/tradedash/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL), srv
}

// TestGetMarketPrice_Envelope 标准信封 + OKX 透传字段名
func TestGetMarketPrice_Envelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/market/price/BTC-USDT" {
			t.Errorf("请求路径不符: %s", r.URL.Path)
		}
		w.Write([]byte(`{"code":"0","msg":"","data":[{"last":"50123.5","bidPx":"50123.0","askPx":"50124.0","vol24h":"1234.5","high24h":"51000","low24h":"49000","ts":"1700000000000"}]}`))
	})

	tick, err := client.GetMarketPrice(context.Background(), "BTC-USDT")
	if err != nil {
		t.Fatalf("不应出错: %v", err)
	}
	if !tick.LastPrice.Equal(decimal.RequireFromString("50123.5")) {
		t.Errorf("最新价不符: %s", tick.LastPrice)
	}
	if !tick.BestBid.Equal(decimal.RequireFromString("50123.0")) {
		t.Errorf("买一价不符: %s", tick.BestBid)
	}
	if tick.Symbol != "BTC-USDT" {
		t.Errorf("symbol 不符: %s", tick.Symbol)
	}
	if tick.Timestamp.UnixMilli() != 1700000000000 {
		t.Errorf("时间戳不符: %v", tick.Timestamp)
	}
}

// TestGetMarketPrice_NormalizedFields 归一化字段名的新版响应
func TestGetMarketPrice_NormalizedFields(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"0","msg":"","data":{"symbol":"ETH-USDT","last_price":"3000.1","best_bid":"3000","best_ask":"3000.2","timestamp":"2024-01-02T15:04:05.123456"}}`))
	})

	tick, err := client.GetMarketPrice(context.Background(), "ETH-USDT")
	if err != nil {
		t.Fatalf("不应出错: %v", err)
	}
	if !tick.LastPrice.Equal(decimal.RequireFromString("3000.1")) {
		t.Errorf("最新价不符: %s", tick.LastPrice)
	}
	if tick.Timestamp.IsZero() {
		t.Error("微秒格式时间戳应能解析")
	}
}

// TestBusinessError code != "0" 返回业务错误
func TestBusinessError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"51001","msg":"Instrument ID does not exist","data":null}`))
	})

	_, err := client.GetMarketPrice(context.Background(), "XXX-USDT")
	if err == nil {
		t.Fatal("业务错误应返回 error")
	}
	if !IsBusinessError(err) {
		t.Errorf("期望 BusinessError，得到 %T: %v", err, err)
	}
}

// TestGetKlines_StringRows OKX 风格字符串行数组
func TestGetKlines_StringRows(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("interval") != "1m" {
			t.Errorf("interval 参数不符: %s", r.URL.Query().Get("interval"))
		}
		// 倒序返回 + 一条坏行 + 一条残缺行
		w.Write([]byte(`{"code":"0","msg":"","data":[
			["1700000120000","102","103","101","102.5","10","0","0","1"],
			["1700000060000","101","102","100","102","12"],
			["bad-ts","1","2","3","4","5"],
			["1700000180000","102.5","104"]
		]}`))
	})

	bars, err := client.GetKlines(context.Background(), "BTC-USDT", "1m", 100)
	if err != nil {
		t.Fatalf("不应出错: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("坏行应被跳过，期望 3 根，得到 %d", len(bars))
	}
	if bars[0].Timestamp != 1700000060000 {
		t.Errorf("返回应按时间升序，首根 %d", bars[0].Timestamp)
	}
	// 残缺行缺失字段按 0 处理
	last := bars[2]
	if last.Open != 102.5 || last.High != 104 || last.Low != 0 || last.Close != 0 {
		t.Errorf("残缺行字段不符: %+v", last)
	}
}

// TestGetBalance_TwoShapes 余额响应的两种历史形态归一化到同一结构
func TestGetBalance_TwoShapes(t *testing.T) {
	wrapped := `{"code":"0","msg":"","data":{"balances":{"USDT":{"total":"1000","available":"800","frozen":"200"}}}}`
	flat := `{"code":"0","msg":"","data":{"USDT":{"total":"1000","available":"800","frozen":"200"}}}`

	for name, body := range map[string]string{"包装形态": wrapped, "扁平形态": flat} {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})

			balance, err := client.GetBalance(context.Background())
			require.NoError(t, err)
			usdt, ok := balance["USDT"]
			require.True(t, ok, "应包含 USDT 余额")
			assert.True(t, usdt.Total.Equal(decimal.NewFromInt(1000)), "总额不符: %s", usdt.Total)
			assert.True(t, usdt.Available.Equal(decimal.NewFromInt(800)), "可用不符: %s", usdt.Available)
			assert.True(t, usdt.Frozen.Equal(decimal.NewFromInt(200)), "冻结不符: %s", usdt.Frozen)
		})
	}
}

// TestGetTrades_BareArray 裸数组响应（旧版端点）也能解析
func TestGetTrades_BareArray(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"trade_id":"t1","symbol":"BTC-USDT","side":"buy","price":"50000","quantity":"0.1"}]`))
	})

	trades, err := client.GetTrades(context.Background(), "BTC-USDT")
	if err != nil {
		t.Fatalf("不应出错: %v", err)
	}
	if len(trades) != 1 || trades[0].TradeID != "t1" || trades[0].Side != domain.SideBuy {
		t.Errorf("成交记录不符: %+v", trades)
	}
}

// TestControlStrategy_ConfirmedStatus 控制命令返回后端确认的状态
func TestControlStrategy_ConfirmedStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/strategy/start" {
			t.Errorf("请求不符: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"code":"0","msg":"","data":{"status":"running"}}`))
	})

	status, err := client.StartStrategy(context.Background(), "deepseek", "BTC-USDT")
	if err != nil {
		t.Fatalf("不应出错: %v", err)
	}
	if status != "running" {
		t.Errorf("期望确认状态 running，得到 %s", status)
	}
}

// TestGetStrategyState_ArrayAndObject 状态端点数组与单对象两种形态
func TestGetStrategyState_ArrayAndObject(t *testing.T) {
	arr := `{"code":"0","msg":"","data":[{"status":"paused","strategy_name":"deepseek"}]}`
	obj := `{"code":"0","msg":"","data":{"status":"paused","strategy_name":"deepseek"}}`

	for name, body := range map[string]string{"数组": arr, "对象": obj} {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			state, err := client.GetStrategyState(context.Background(), "BTC-USDT", "deepseek")
			require.NoError(t, err)
			assert.Equal(t, domain.StrategyPaused, state.Status)
			assert.Equal(t, "deepseek", state.StrategyName)
		})
	}
}

// TestClearHistory_RequiresSuccess status 非 success 视为失败
func TestClearHistory_RequiresSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"0","msg":"","data":{"status":"denied"}}`))
	})
	if err := client.ClearHistory(context.Background()); err == nil {
		t.Error("status=denied 应返回错误")
	}
}

// TestHTTPErrorSurfaced 非 2xx 响应直接报错
func TestHTTPErrorSurfaced(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	if _, err := client.GetBalance(context.Background()); err == nil {
		t.Error("HTTP 500 应返回错误")
	}
}
