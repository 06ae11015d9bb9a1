package classifier

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/loan-desk/internal/apperr"
	"github.com/sells-group/loan-desk/internal/model"
)

func applicant(cibil int64) model.FeatureVector {
	return model.FeatureVector{
		Dependents: 2, Education: 1, Income: 5000000, LoanAmount: 15000000,
		LoanTerm: 10, CibilScore: cibil, ResidentialAssets: 7000000,
		CommercialAssets: 5000000, LuxuryAssets: 15000000, BankAssets: 5000000,
	}
}

// cibilOnly approves iff cibil_score is at least 650.
const cibilOnly = `kind: logistic
intercept: 0
weights:
  dependents: 0
  education: 0
  self_employed: 0
  income: 0
  loan_amount: 0
  loan_term: 0
  cibil_score: 1
  residential_assets: 0
  commercial_assets: 0
  luxury_assets: 0
  bank_assets: 0
mean:
  cibil_score: 650
`

func writeArtifact(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cibil int64
		want  Label
	}{
		{cibil: 900, want: Approve},
		{cibil: 650, want: Approve},
		{cibil: 649, want: Reject},
		{cibil: 300, want: Reject},
	}
	for _, tt := range tests {
		got, err := Fallback{}.Predict(applicant(tt.cibil))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "cibil %d", tt.cibil)
	}
	assert.Equal(t, KindFallback, Fallback{}.Kind())
}

func TestFallback_Deterministic(t *testing.T) {
	t.Parallel()

	fv := applicant(700)
	first, _ := Fallback{}.Predict(fv)
	for i := 0; i < 10; i++ {
		got, _ := Fallback{}.Predict(fv)
		assert.Equal(t, first, got)
	}
}

func TestOpen_Trained(t *testing.T) {
	t.Parallel()

	b, err := Open(writeArtifact(t, cibilOnly))
	require.NoError(t, err)
	assert.Equal(t, KindTrained, b.Kind())

	got, err := b.Predict(applicant(700))
	require.NoError(t, err)
	assert.Equal(t, Approve, got)

	got, err = b.Predict(applicant(600))
	require.NoError(t, err)
	assert.Equal(t, Reject, got)
}

func TestOpen_FallsBack(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr string
	}{
		{
			name:    "no path",
			path:    func(*testing.T) string { return "" },
			wantErr: "no model path",
		},
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.yaml") },
			wantErr: "read artifact",
		},
		{
			name:    "bad yaml",
			path:    func(t *testing.T) string { return writeArtifact(t, "kind: [") },
			wantErr: "parse artifact",
		},
		{
			name:    "wrong kind",
			path:    func(t *testing.T) string { return writeArtifact(t, strings.Replace(cibilOnly, "logistic", "forest", 1)) },
			wantErr: `unsupported model kind "forest"`,
		},
		{
			name: "missing weight",
			path: func(t *testing.T) string {
				return writeArtifact(t, strings.Replace(cibilOnly, "  bank_assets: 0\n", "", 1))
			},
			wantErr: "weights missing features: bank_assets",
		},
		{
			name: "unknown weight",
			path: func(t *testing.T) string {
				return writeArtifact(t, strings.Replace(cibilOnly, "  bank_assets: 0\n", "  bank_assets: 0\n  res_asset: 1\n", 1))
			},
			wantErr: "weights names unknown features: res_asset",
		},
		{
			name: "zero scale",
			path: func(t *testing.T) string {
				return writeArtifact(t, cibilOnly+"scale:\n  cibil_score: 0\n")
			},
			wantErr: "scale for cibil_score must be non-zero",
		},
		{
			name: "nan weight",
			path: func(t *testing.T) string {
				return writeArtifact(t, strings.Replace(cibilOnly, "  cibil_score: 1\n", "  cibil_score: .nan\n", 1))
			},
			wantErr: "weights not finite for: cibil_score",
		},
		{
			name: "infinite mean",
			path: func(t *testing.T) string {
				return writeArtifact(t, strings.Replace(cibilOnly, "  cibil_score: 650\n", "  cibil_score: .inf\n", 1))
			},
			wantErr: "mean not finite for: cibil_score",
		},
		{
			name: "nan intercept",
			path: func(t *testing.T) string {
				return writeArtifact(t, strings.Replace(cibilOnly, "intercept: 0", "intercept: .nan", 1))
			},
			wantErr: "intercept NaN is not finite",
		},
		{
			name: "nan threshold",
			path: func(t *testing.T) string {
				return writeArtifact(t, cibilOnly+"threshold: .nan\n")
			},
			wantErr: "threshold NaN outside (0, 1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := Open(tt.path(t))
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindClassifierUnavailable))
			assert.Contains(t, err.Error(), tt.wantErr)

			require.NotNil(t, b)
			assert.Equal(t, KindFallback, b.Kind())
			got, err := b.Predict(applicant(650))
			require.NoError(t, err)
			assert.Equal(t, Approve, got)
		})
	}
}

func TestNewLogistic_Threshold(t *testing.T) {
	t.Parallel()

	art, err := LoadArtifact(writeArtifact(t, cibilOnly))
	require.NoError(t, err)

	bad := 1.5
	art.Threshold = &bad
	_, err = NewLogistic(art)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside (0, 1)")

	strict := 0.99
	art.Threshold = &strict
	lr, err := NewLogistic(art)
	require.NoError(t, err)

	got, err := lr.Predict(applicant(652))
	require.NoError(t, err)
	assert.Equal(t, Reject, got, "p(652) is about 0.88")

	got, err = lr.Predict(applicant(700))
	require.NoError(t, err)
	assert.Equal(t, Approve, got)
}

func TestLogistic_Probability(t *testing.T) {
	t.Parallel()

	art, err := LoadArtifact(writeArtifact(t, cibilOnly))
	require.NoError(t, err)
	lr, err := NewLogistic(art)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, lr.Probability(applicant(650)), 1e-9)
	assert.Greater(t, lr.Probability(applicant(660)), lr.Probability(applicant(655)))
}

func TestShippedArtifact(t *testing.T) {
	t.Parallel()

	b, err := Open(filepath.Join("..", "..", "model", "loan_model.yaml"))
	require.NoError(t, err)
	assert.Equal(t, KindTrained, b.Kind())
	assert.Equal(t, "2024-03", b.(*Logistic).Version())

	high, err := b.Predict(applicant(850))
	require.NoError(t, err)
	assert.Equal(t, Approve, high)

	low, err := b.Predict(applicant(350))
	require.NoError(t, err)
	assert.Equal(t, Reject, low)
}

func TestLabel(t *testing.T) {
	t.Parallel()
	assert.True(t, Approve.Approved())
	assert.False(t, Reject.Approved())
	assert.Equal(t, "approve", Approve.String())
	assert.Equal(t, "reject", Reject.String())
}
