package account

// supportedCurrencies is the set of ISO 4217 codes accounts can be
// denominated in. The service does no cross-currency arithmetic, so the
// code is only ever validated, stored and echoed back.
var supportedCurrencies = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "JPY": {}, "CHF": {},
	"CAD": {}, "AUD": {}, "NZD": {}, "SGD": {}, "HKD": {},
	"SEK": {}, "NOK": {}, "DKK": {}, "PLN": {}, "CZK": {},
	"IDR": {}, "MYR": {}, "THB": {}, "PHP": {}, "INR": {},
	"CNY": {}, "KRW": {}, "TWD": {}, "BRL": {}, "MXN": {},
	"ZAR": {}, "AED": {}, "SAR": {}, "TRY": {}, "ILS": {},
}

func IsSupportedCurrency(code string) bool {
	_, ok := supportedCurrencies[code]
	return ok
}
