package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCronDescription(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		{"every minute", "* * * * *", "Every minute"},
		{"every minute during hour", "* 3 * * *", "Every minute during 3AM hour"},
		{"every minute over hour range", "* 9-17 * * *", "Every minute from 9AM to 5PM"},
		{"minute interval", "*/5 * * * *", "Every 5 minutes"},
		{"minute interval during hour", "*/15 2 * * *", "Every 15 minutes during 2AM hour"},
		{"minute interval at hour list", "*/10 6,18 * * *", "Every 10 minutes at 6AM and 6PM"},
		{"hourly", "0 * * * *", "Every hour"},
		{"hourly at minute", "15 * * * *", "Every hour at :15"},
		{"hourly with start", "15 */1 * * *", "Every hour from 00:15"},
		{"hour interval", "0 */6 * * *", "Every 6 hours"},
		{"hour interval with start", "0 2/6 * * *", "Every 6 hours from 02:00"},
		{"twice daily with start", "30 1/12 * * *", "Twice daily from 01:30"},
		{"daily at time", "30 3 * * *", "Daily at 3:30AM"},
		{"daily on the hour", "0 3 * * *", "Daily at 3AM"},
		{"daily at midnight", "0 0 * * *", "Daily at midnight"},
		{"weekly", "0 0 * * 0", "Sundays at midnight"},
		{"weekday range", "30 18 * * 1-5", "Mon-Fri at 6:30PM"},
		{"weekday list", "0 9 * * 1,3,5", "Mon, Wed, Fri at 9AM"},
		{"monthly", "0 12 1 * *", "1st of each month at noon"},
		{"later ordinal", "0 12 22 * *", "22nd of each month at noon"},
		{"day interval", "0 4 */2 * *", "Every 2 days at 4AM"},
		{"hour list", "0 0,12 * * *", "Daily at 12AM and 12PM"},
		{"hour list of three", "0 0,8,16 * * *", "Daily at 12AM, 8AM, and 4PM"},
		{"minute past hour list", "45 0,12 * * *", "Daily at :45 past 12AM and 12PM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CronDescription(tt.expr))
		})
	}
}

func TestCronDescriptionPassthrough(t *testing.T) {
	// Anything that is not a five-field expression comes back verbatim.
	assert.Equal(t, "@daily", CronDescription("@daily"))
	assert.Equal(t, "0 30 3 * * *", CronDescription("0 30 3 * * *"))
	assert.Equal(t, "", CronDescription(""))
}
