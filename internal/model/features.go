package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/loan-desk/internal/apperr"
)

// FeatureCount is the length of the classifier input vector.
const FeatureCount = 11

// FeatureNames lists the feature keys in classifier input order.
var FeatureNames = [FeatureCount]string{
	"dependents",
	"education",
	"self_employed",
	"income",
	"loan_amount",
	"loan_term",
	"cibil_score",
	"residential_assets",
	"commercial_assets",
	"luxury_assets",
	"bank_assets",
}

// FeatureAliases maps the short asset keys posted by the browser client
// to their canonical names.
var FeatureAliases = map[string]string{
	"res_asset":  "residential_assets",
	"com_asset":  "commercial_assets",
	"lux_asset":  "luxury_assets",
	"bank_asset": "bank_assets",
}

// Index of cibil_score within the vector.
const CibilScoreIndex = 6

// FeatureVector is the typed, validated classifier input.
type FeatureVector struct {
	Dependents        int64
	Education         int64
	SelfEmployed      int64
	Income            int64
	LoanAmount        int64
	LoanTerm          int64
	CibilScore        int64
	ResidentialAssets int64
	CommercialAssets  int64
	LuxuryAssets      int64
	BankAssets        int64
}

// Values returns the features positionally, in FeatureNames order.
func (f FeatureVector) Values() [FeatureCount]int64 {
	return [FeatureCount]int64{
		f.Dependents,
		f.Education,
		f.SelfEmployed,
		f.Income,
		f.LoanAmount,
		f.LoanTerm,
		f.CibilScore,
		f.ResidentialAssets,
		f.CommercialAssets,
		f.LuxuryAssets,
		f.BankAssets,
	}
}

// FeatureVectorFromValues builds a vector from positional values.
func FeatureVectorFromValues(v [FeatureCount]int64) FeatureVector {
	return FeatureVector{
		Dependents:        v[0],
		Education:         v[1],
		SelfEmployed:      v[2],
		Income:            v[3],
		LoanAmount:        v[4],
		LoanTerm:          v[5],
		CibilScore:        v[6],
		ResidentialAssets: v[7],
		CommercialAssets:  v[8],
		LuxuryAssets:      v[9],
		BankAssets:        v[10],
	}
}

// Raw returns the persisted form of f with every value as a JSON integer.
func (f FeatureVector) Raw() RawFeatures {
	var r RawFeatures
	for i, v := range f.Values() {
		*r.slot(i) = json.RawMessage(strconv.FormatInt(v, 10))
	}
	return r
}

// RawFeatures is the persisted feature set. Values are kept as raw JSON
// tokens so that documents written elsewhere round-trip untouched and are
// only interpreted when parsed.
type RawFeatures struct {
	Dependents        json.RawMessage `json:"dependents,omitempty"`
	Education         json.RawMessage `json:"education,omitempty"`
	SelfEmployed      json.RawMessage `json:"self_employed,omitempty"`
	Income            json.RawMessage `json:"income,omitempty"`
	LoanAmount        json.RawMessage `json:"loan_amount,omitempty"`
	LoanTerm          json.RawMessage `json:"loan_term,omitempty"`
	CibilScore        json.RawMessage `json:"cibil_score,omitempty"`
	ResidentialAssets json.RawMessage `json:"residential_assets,omitempty"`
	CommercialAssets  json.RawMessage `json:"commercial_assets,omitempty"`
	LuxuryAssets      json.RawMessage `json:"luxury_assets,omitempty"`
	BankAssets        json.RawMessage `json:"bank_assets,omitempty"`
}

func (r *RawFeatures) slot(i int) *json.RawMessage {
	switch i {
	case 0:
		return &r.Dependents
	case 1:
		return &r.Education
	case 2:
		return &r.SelfEmployed
	case 3:
		return &r.Income
	case 4:
		return &r.LoanAmount
	case 5:
		return &r.LoanTerm
	case 6:
		return &r.CibilScore
	case 7:
		return &r.ResidentialAssets
	case 8:
		return &r.CommercialAssets
	case 9:
		return &r.LuxuryAssets
	case 10:
		return &r.BankAssets
	}
	panic("model: feature index out of range: " + strconv.Itoa(i))
}

// Set stores a raw value under a canonical or aliased key. It reports
// false for keys that are not features.
func (r *RawFeatures) Set(key string, value json.RawMessage) bool {
	if canonical, ok := FeatureAliases[key]; ok {
		key = canonical
	}
	for i, name := range FeatureNames {
		if name == key {
			*r.slot(i) = value
			return true
		}
	}
	return false
}

// Get returns the raw value stored for a canonical key.
func (r RawFeatures) Get(key string) json.RawMessage {
	for i, name := range FeatureNames {
		if name == key {
			return *r.slot(i)
		}
	}
	return nil
}

// UnmarshalJSON accepts both canonical keys and the short asset aliases.
// A canonical key wins over its alias when both are present.
func (r *RawFeatures) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = RawFeatures{}
	for alias, canonical := range FeatureAliases {
		if v, ok := m[alias]; ok {
			if _, dup := m[canonical]; !dup {
				r.Set(canonical, v)
			}
		}
	}
	for _, name := range FeatureNames {
		if v, ok := m[name]; ok {
			r.Set(name, v)
		}
	}
	return nil
}

// Parse converts every feature to an integer. All problems are reported at
// once in a validation error keyed by feature name.
func (r RawFeatures) Parse() (FeatureVector, error) {
	var vals [FeatureCount]int64
	problems := map[string]string{}
	for i, name := range FeatureNames {
		v, err := ParseInteger(*r.slot(i))
		if err != nil {
			problems[name] = err.Error()
			continue
		}
		vals[i] = v
	}
	if len(problems) > 0 {
		return FeatureVector{}, apperr.Validation("parse features", "invalid input data", problems)
	}
	return FeatureVectorFromValues(vals), nil
}

type parseError string

func (e parseError) Error() string { return string(e) }

const (
	errMissing    = parseError("is required")
	errNotInteger = parseError("must be an integer")
)

// ParseInteger interprets a raw JSON token as an integer. JSON integers,
// integral floats such as 5.0 and strings holding an integer are accepted.
func ParseInteger(raw json.RawMessage) (int64, error) {
	tok := bytes.TrimSpace(raw)
	if len(tok) == 0 {
		return 0, errMissing
	}
	switch tok[0] {
	case '"':
		var s string
		if err := json.Unmarshal(tok, &s); err != nil {
			return 0, errNotInteger
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, errMissing
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, errNotInteger
		}
		return n, nil
	case 'n':
		return 0, errMissing
	case 't', 'f', '[', '{':
		return 0, errNotInteger
	}
	s := string(tok)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, errNotInteger
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, errNotInteger
	}
	return int64(f), nil
}
