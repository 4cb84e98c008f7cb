package model

import (
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Profile holds every tunable parameter of the indicator pipeline,
// the average windows and the decision thresholds of one hunter.
type Profile struct {
	// Indicator periods
	RSITimePeriod       int     `json:"rsi_timeperiod" yaml:"rsi_timeperiod" default:"14" validate:"gte=2"`
	CCITimePeriod       int     `json:"cci_timeperiod" yaml:"cci_timeperiod" default:"20" validate:"gte=2"`
	MFITimePeriod       int     `json:"mfi_timeperiod" yaml:"mfi_timeperiod" default:"14" validate:"gte=2"`
	ADXTimePeriod       int     `json:"adx_timeperiod" yaml:"adx_timeperiod" default:"14" validate:"gte=2"`
	DITimePeriod        int     `json:"di_timeperiod" yaml:"di_timeperiod" default:"14" validate:"gte=1"`
	ATRTimePeriod       int     `json:"atr_timeperiod" yaml:"atr_timeperiod" default:"14" validate:"gte=1"`
	MACDTimePeriod      int     `json:"macd_timeperiod" yaml:"macd_timeperiod" default:"12" validate:"gte=2"`
	MACDSignalPeriod    int     `json:"macd_signalperiod" yaml:"macd_signalperiod" default:"9" validate:"gte=1"`
	BollingerTimePeriod int     `json:"bollinger_timeperiod" yaml:"bollinger_timeperiod" default:"20" validate:"gte=2"`
	BollingerNbDev      float64 `json:"bollinger_nbdev" yaml:"bollinger_nbdev" default:"2" validate:"gt=0"`
	StochKTimePeriod    int     `json:"stoch_k_timeperiod" yaml:"stoch_k_timeperiod" default:"14" validate:"gte=1"`
	StochDTimePeriod    int     `json:"stoch_d_timeperiod" yaml:"stoch_d_timeperiod" default:"3" validate:"gte=1"`
	StochRSITimePeriod  int     `json:"stoch_rsi_timeperiod" yaml:"stoch_rsi_timeperiod" default:"14" validate:"gte=2"`
	StochRSIKTimePeriod int     `json:"stoch_rsi_k_timeperiod" yaml:"stoch_rsi_k_timeperiod" default:"3" validate:"gte=1"`
	StochRSIDTimePeriod int     `json:"stoch_rsi_d_timeperiod" yaml:"stoch_rsi_d_timeperiod" default:"3" validate:"gte=1"`
	EMAFastTimePeriod   int     `json:"ema_fast_timeperiod" yaml:"ema_fast_timeperiod" default:"9" validate:"gte=2"`
	EMASlowTimePeriod   int     `json:"ema_slow_timeperiod" yaml:"ema_slow_timeperiod" default:"21" validate:"gte=2"`
	PSARAcceleration    float64 `json:"psar_acceleration" yaml:"psar_acceleration" default:"0.02" validate:"gt=0"`
	PSARMaximum         float64 `json:"psar_maximum" yaml:"psar_maximum" default:"0.2" validate:"gt=0"`

	// Trailing-average windows
	AvgVolumePeriod   int `json:"avg_volume_period" yaml:"avg_volume_period" default:"1" validate:"gte=1"`
	AvgClosePeriod    int `json:"avg_close_period" yaml:"avg_close_period" default:"3" validate:"gte=1"`
	AvgADXPeriod      int `json:"avg_adx_period" yaml:"avg_adx_period" default:"7" validate:"gte=1"`
	AvgATRPeriod      int `json:"avg_atr_period" yaml:"avg_atr_period" default:"28" validate:"gte=1"`
	AvgDIPeriod       int `json:"avg_di_period" yaml:"avg_di_period" default:"7" validate:"gte=1"`
	AvgRSIPeriod      int `json:"avg_rsi_period" yaml:"avg_rsi_period" default:"1" validate:"gte=1"`
	AvgStochRSIPeriod int `json:"avg_stoch_rsi_period" yaml:"avg_stoch_rsi_period" default:"1" validate:"gte=1"`
	AvgMACDPeriod     int `json:"avg_macd_period" yaml:"avg_macd_period" default:"1" validate:"gte=1"`
	AvgStochPeriod    int `json:"avg_stoch_period" yaml:"avg_stoch_period" default:"1" validate:"gte=1"`
	AvgEMAPeriod      int `json:"avg_ema_period" yaml:"avg_ema_period" default:"1" validate:"gte=1"`
	AvgCCIPeriod      int `json:"avg_cci_period" yaml:"avg_cci_period" default:"1" validate:"gte=1"`
	AvgMFIPeriod      int `json:"avg_mfi_period" yaml:"avg_mfi_period" default:"1" validate:"gte=1"`
	AvgPSARPeriod     int `json:"avg_psar_period" yaml:"avg_psar_period" default:"1" validate:"gte=1"`
	AvgVWAPPeriod     int `json:"avg_vwap_period" yaml:"avg_vwap_period" default:"1" validate:"gte=1"`

	// ADX regime thresholds
	ADXStrongTrend float64 `json:"adx_strong_trend" yaml:"adx_strong_trend" default:"25" validate:"gte=0"`
	ADXWeakTrend   float64 `json:"adx_weak_trend" yaml:"adx_weak_trend" default:"20" validate:"gte=0"`
	ADXNoTrend     float64 `json:"adx_no_trend" yaml:"adx_no_trend" default:"5" validate:"gte=0"`

	// Oscillator thresholds
	RSIBuy          float64 `json:"rsi_buy" yaml:"rsi_buy" default:"30" validate:"gte=0,lte=100"`
	RSISell         float64 `json:"rsi_sell" yaml:"rsi_sell" default:"70" validate:"gte=0,lte=100"`
	CCIBuy          float64 `json:"cci_buy" yaml:"cci_buy" default:"30"`
	CCISell         float64 `json:"cci_sell" yaml:"cci_sell" default:"70"`
	MFIBuy          float64 `json:"mfi_buy" yaml:"mfi_buy" default:"30" validate:"gte=0,lte=100"`
	MFISell         float64 `json:"mfi_sell" yaml:"mfi_sell" default:"70" validate:"gte=0,lte=100"`
	StochBuy        float64 `json:"stoch_buy" yaml:"stoch_buy" default:"20" validate:"gte=0,lte=100"`
	StochSell       float64 `json:"stoch_sell" yaml:"stoch_sell" default:"80" validate:"gte=0,lte=100"`
	ATRBuyThreshold float64 `json:"atr_buy_threshold" yaml:"atr_buy_threshold" default:"0.005" validate:"gte=0"`
}

// DefaultProfile returns a profile populated from the field defaults.
func DefaultProfile() Profile {
	var p Profile
	// Tags are static; Set only fails on malformed tags.
	if err := defaults.Set(&p); err != nil {
		panic(err)
	}
	return p
}

// Validate checks field bounds and returns a *ConfigurationError on failure.
func (p *Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return &ConfigurationError{Field: "profile", Err: err}
	}
	return nil
}

// Toggles enables or disables each predicate family.
type Toggles struct {
	Trend                bool `json:"trend_signals" default:"false"`
	Price                bool `json:"price_signals" default:"true"`
	RSI                  bool `json:"rsi_signals" default:"true"`
	RSIDivergence        bool `json:"rsi_divergence_signals" default:"false"`
	Volume               bool `json:"vol_signals" default:"true"`
	MACDCross            bool `json:"macd_cross_signals" default:"true"`
	MACDHistogram        bool `json:"macd_histogram_signals" default:"false"`
	Bollinger            bool `json:"bollinger_signals" default:"true"`
	Stochastic           bool `json:"stoch_signals" default:"true"`
	StochasticDivergence bool `json:"stoch_divergence_signals" default:"false"`
	StochasticRSI        bool `json:"stoch_rsi_signals" default:"false"`
	EMACross             bool `json:"ema_cross_signals" default:"false"`
	EMAFast              bool `json:"ema_fast_signals" default:"false"`
	EMASlow              bool `json:"ema_slow_signals" default:"false"`
	DI                   bool `json:"di_signals" default:"false"`
	CCI                  bool `json:"cci_signals" default:"false"`
	CCIDivergence        bool `json:"cci_divergence_signals" default:"false"`
	MFI                  bool `json:"mfi_signals" default:"false"`
	MFIDivergence        bool `json:"mfi_divergence_signals" default:"false"`
	ATR                  bool `json:"atr_signals" default:"false"`
	VWAP                 bool `json:"vwap_signals" default:"false"`
	PSAR                 bool `json:"psar_signals" default:"false"`
	MA50                 bool `json:"ma50_signals" default:"false"`
	MA200                bool `json:"ma200_signals" default:"false"`
	MACross              bool `json:"ma_cross_signals" default:"false"`
}

// DefaultToggles returns the toggle set a new hunter starts with.
func DefaultToggles() Toggles {
	var t Toggles
	if err := defaults.Set(&t); err != nil {
		panic(err)
	}
	return t
}

// Hunter is a user-owned monitoring configuration for one symbol and interval.
type Hunter struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id" validate:"required"`
	Symbol        string     `json:"symbol" default:"BTCUSDC" validate:"required,alphanum,uppercase"`
	Interval      string     `json:"interval" default:"1h" validate:"required"`
	Lookback      string     `json:"lookback" default:"1d"`
	Comment       string     `json:"comment" validate:"max=255"`
	Note          string     `json:"note"`
	Running       bool       `json:"running"`
	Toggles       Toggles    `json:"toggles"`
	Profile       Profile    `json:"profile"`
	Klines        []RawKline `json:"-"`
	KlinesFetched time.Time  `json:"klines_fetched_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewHunter returns a stopped hunter with default toggles and profile.
func NewHunter(userID int64) *Hunter {
	h := &Hunter{UserID: userID}
	if err := defaults.Set(h); err != nil {
		panic(err)
	}
	h.Toggles = DefaultToggles()
	h.Profile = DefaultProfile()
	return h
}

// Validate checks the hunter fields and its profile.
func (h *Hunter) Validate() error {
	if err := validate.Struct(h); err != nil {
		return &ConfigurationError{Field: "hunter", Err: err}
	}
	return nil
}

// User owns hunters and chooses where signals are delivered.
type User struct {
	ID                      int64     `json:"id"`
	Username                string    `json:"username" validate:"required"`
	Email                   string    `json:"email" validate:"omitempty,email"`
	TelegramChatID          string    `json:"telegram_chat_id"`
	EmailSignalsReceiver    bool      `json:"email_signals_receiver"`
	TelegramSignalsReceiver bool      `json:"telegram_signals_receiver"`
	CreatedAt               time.Time `json:"created_at"`
}

// AnalysisSettings is the per-user dashboard snapshot, refreshed on its own schedule.
type AnalysisSettings struct {
	UserID        int64      `json:"user_id"`
	Symbol        string     `json:"symbol" default:"BTCUSDC"`
	Interval      string     `json:"interval" default:"1h"`
	Lookback      string     `json:"lookback" default:"1d"`
	Klines        []RawKline `json:"-"`
	KlinesFetched time.Time  `json:"klines_fetched_at"`
}

// NewAnalysisSettings returns default dashboard settings for a user.
func NewAnalysisSettings(userID int64) *AnalysisSettings {
	a := &AnalysisSettings{UserID: userID}
	if err := defaults.Set(a); err != nil {
		panic(err)
	}
	return a
}
