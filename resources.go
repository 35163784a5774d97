package fitbyte

import (
	"context"
	"net/url"
	"time"

	"github.com/jamesprial/go-fitbyte/pkg/value"
)

// dateLayout is the yyyy-MM-dd form Fitbit uses in resource paths.
const dateLayout = "2006-01-02"

// FormatDate renders t the way Fitbit expects dates in resource paths.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// userPath builds a path under the current user's resources.
func userPath(segments ...string) string {
	p := "user/-"
	for _, s := range segments {
		p += "/" + url.PathEscape(s)
	}
	return p
}

// Profile returns the user's profile.
func (c *Client) Profile(ctx context.Context, opts *RequestOptions) (value.Value, error) {
	return c.Get(ctx, "user/-/profile.json", opts)
}

// Devices returns the trackers and scales paired with the account.
func (c *Client) Devices(ctx context.Context, opts *RequestOptions) (value.Value, error) {
	return c.Get(ctx, "user/-/devices.json", opts)
}

// Friends returns the user's friends.
func (c *Client) Friends(ctx context.Context, opts *RequestOptions) (value.Value, error) {
	return c.Get(ctx, "user/-/friends.json", opts)
}

// DailyActivitySummary returns the activity summary for date.
func (c *Client) DailyActivitySummary(ctx context.Context, date time.Time, opts *RequestOptions) (value.Value, error) {
	return c.Get(ctx, userPath("activities", "date", FormatDate(date)+".json"), opts)
}

// DailyActivityGoals returns the user's daily activity goals.
func (c *Client) DailyActivityGoals(ctx context.Context, opts *RequestOptions) (value.Value, error) {
	return c.Get(ctx, "user/-/activities/goals/daily.json", opts)
}

// HeartRateTimeSeries returns heart rate data for the period ending at date,
// for example 7d or 1m.
func (c *Client) HeartRateTimeSeries(ctx context.Context, date time.Time, period string, opts *RequestOptions) (value.Value, error) {
	if err := c.validator.ValidatePeriod(period); err != nil {
		return value.Value{}, err
	}
	return c.Get(ctx, userPath("activities", "heart", "date", FormatDate(date), period+".json"), opts)
}

// SleepLogs returns the sleep logs recorded on date.
func (c *Client) SleepLogs(ctx context.Context, date time.Time, opts *RequestOptions) (value.Value, error) {
	return c.Get(ctx, userPath("sleep", "date", FormatDate(date)+".json"), opts)
}

// SleepGoal returns the user's sleep goal.
func (c *Client) SleepGoal(ctx context.Context, opts *RequestOptions) (value.Value, error) {
	return c.Get(ctx, "user/-/sleep/goal.json", opts)
}

// UpdateSleepGoal sets the user's sleep goal to minutes of sleep per night.
func (c *Client) UpdateSleepGoal(ctx context.Context, minutes int, opts *RequestOptions) (value.Value, error) {
	body := value.NewObject(value.Member{Key: value.StringKey("min_duration"), Value: value.Int(int64(minutes))})
	return c.Post(ctx, "user/-/sleep/goal.json", body, opts)
}

// DeleteSleepLog deletes the sleep log with the given id.
func (c *Client) DeleteSleepLog(ctx context.Context, logID string, opts *RequestOptions) (value.Value, error) {
	if err := c.validator.ValidateID("log_id", logID); err != nil {
		return value.Value{}, err
	}
	return c.Delete(ctx, userPath("sleep", logID+".json"), opts)
}

// WeightLogs returns the weight logs recorded on date.
func (c *Client) WeightLogs(ctx context.Context, date time.Time, opts *RequestOptions) (value.Value, error) {
	return c.Get(ctx, userPath("body", "log", "weight", "date", FormatDate(date)+".json"), opts)
}

// WaterLogs returns the water logs recorded on date.
func (c *Client) WaterLogs(ctx context.Context, date time.Time, opts *RequestOptions) (value.Value, error) {
	return c.Get(ctx, userPath("foods", "log", "water", "date", FormatDate(date)+".json"), opts)
}

// FoodLogs returns the food logs recorded on date.
func (c *Client) FoodLogs(ctx context.Context, date time.Time, opts *RequestOptions) (value.Value, error) {
	return c.Get(ctx, userPath("foods", "log", "date", FormatDate(date)+".json"), opts)
}

// Alarms returns the alarms set on the tracker.
func (c *Client) Alarms(ctx context.Context, trackerID string, opts *RequestOptions) (value.Value, error) {
	if err := c.validator.ValidateID("tracker_id", trackerID); err != nil {
		return value.Value{}, err
	}
	return c.Get(ctx, userPath("devices", "tracker", trackerID, "alarms.json"), opts)
}
