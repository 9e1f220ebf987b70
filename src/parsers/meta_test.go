package parsers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/username/icrs/backend/src/periods"
)

func TestFindAgentCodeLabeled(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{"AGENT ACCOUNT NO: 12345", "12345"},
		{"AGENCY ACCOUNT NO: 67890", "67890"},
		{"AGENT ACCONT NO: 999", "999"}, // source documents carry this typo
		{"AGENCY ACCT: 4567", "4567"},
		{"AGENT CODE: 777", "777"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FindAgentCode([]string{tc.line}), tc.line)
	}
}

func TestFindAgentCodeFixedPositionLine(t *testing.T) {
	lines := []string{
		"SIC LIFE COMPANY LIMITED",
		"COMMISSION STATEMENT",
		"FOR THE MONTH",
		"",
		"",
		"",
		"KWAME MENSAH AGENT 54321 EXTRA",
	}
	assert.Equal(t, "54321", FindAgentCode(lines))
}

func TestFindAgentCodeBareFallbackSkipsYears(t *testing.T) {
	lines := []string{
		"NO LABELS HERE",
		"REF 2025 CODE",
		"VALUE 678901 TRAILING",
	}
	assert.Equal(t, "678901", FindAgentCode(lines))
}

func TestFindAgentCodeNotFound(t *testing.T) {
	assert.Empty(t, FindAgentCode(nil))
	assert.Empty(t, FindAgentCode([]string{"NOTHING TO SEE", "STILL NOTHING"}))
}

func TestFindLicense(t *testing.T) {
	assert.Equal(t, "T9876", FindLicense([]string{"AGENT LICENSE NO: T9876"}))
	assert.Equal(t, "T4455", FindLicense([]string{"REGISTERED UNDER T-4455 SINCE 2019"}))
	assert.Empty(t, FindLicense([]string{"NO LICENSE ANYWHERE"}))
}

func TestExtractMetaDerivesPeriodFromBatchCode(t *testing.T) {
	meta := ExtractMeta([]string{
		"COM_JUN_2025",
		"AGENT ACCOUNT NO: 12345",
		"AGENT LICENSE NO: T9876",
	})
	assert.Equal(t, "12345", meta.AgentCode)
	assert.Equal(t, "T9876", meta.LicenseNo)
	assert.Equal(t, "COM_JUN_2025", meta.BatchCode)
	assert.Equal(t, periods.Make(2025, time.June), meta.Period)

	noBatch := ExtractMeta([]string{"AGENT ACCOUNT NO: 12345"})
	assert.Empty(t, noBatch.BatchCode)
	assert.True(t, noBatch.Period.IsZero())
}

func TestLooksLikeAddress(t *testing.T) {
	assert.True(t, looksLikeAddress("P.O. BOX 123"))
	assert.True(t, looksLikeAddress("TEL: 0302211000"))
	assert.True(t, looksLikeAddress("SIC LIFE COMPANY LIMITED"))
	assert.True(t, looksLikeAddress("A1 234 567"))
	assert.False(t, looksLikeAddress("AKOSUA BONSU"))
	assert.False(t, looksLikeAddress(""))
}
