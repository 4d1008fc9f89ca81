package pricing

// Documented defaults applied when a tenant has no stored rate schedule.
const (
	DefaultHourlyRate    Money = 500
	DefaultDailyMaxRate  Money = 3000
	DefaultGraceMinutes        = 15
	DefaultCurrency            = "USD"
	DefaultLocale              = "en-US"
)

// Context is the resolved pricing context the engine computes against. It is
// built once with all defaults applied so the engine itself never branches on
// whether an input was present.
type Context struct {
	Schedule    RateSchedule
	Parker      Parker
	Business    Business
	Validations []Validation
}

// Resolve folds optional inputs into a Context. A nil schedule takes the
// documented defaults; a nil parker means no VIP/pass treatment; a nil
// business means zero tax with default currency and locale.
func Resolve(schedule *RateSchedule, parker *Parker, business *Business, validations []Validation) Context {
	ctx := Context{
		Schedule: RateSchedule{
			HourlyRate:         DefaultHourlyRate,
			DailyMaxRate:       DefaultDailyMaxRate,
			GracePeriodMinutes: DefaultGraceMinutes,
		},
		Business: Business{
			Currency: DefaultCurrency,
			Locale:   DefaultLocale,
		},
		Validations: validations,
	}
	if schedule != nil {
		ctx.Schedule = *schedule
	}
	if parker != nil {
		ctx.Parker = *parker
	}
	if business != nil {
		ctx.Business = *business
		if ctx.Business.Currency == "" {
			ctx.Business.Currency = DefaultCurrency
		}
		if ctx.Business.Locale == "" {
			ctx.Business.Locale = DefaultLocale
		}
	}
	return ctx
}

// firstHourRate resolves the rate for the opening hour of a stay: the
// explicit first-hour override when configured, the flat hourly rate
// otherwise. Night and weekend overrides are applied by the engine on top.
func (c Context) firstHourRate() Money {
	if c.Schedule.FirstHourRate > 0 {
		return c.Schedule.FirstHourRate
	}
	return c.Schedule.HourlyRate
}
