package traindata

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"
)

// TrainRecord is one scheduled train between two stations on one day.
type TrainRecord struct {
	TrainNo     string            `json:"trainNo"`
	FromStation string            `json:"fromStation"`
	ToStation   string            `json:"toStation"`
	DepartTime  string            `json:"departTime"`
	ArriveTime  string            `json:"arriveTime"`
	Date        string            `json:"date"`
	Prices      map[string]string `json:"prices,omitempty"`
}

// StationPair is a directed origin/destination query unit.
type StationPair struct {
	From string
	To   string
}

// FetchError records the failure of one station-pair query. Pair failures
// are accumulated rather than aborting the day's scrape.
type FetchError struct {
	Pair StationPair
	Date string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s->%s on %s: %v", e.Pair.From, e.Pair.To, e.Date, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// LeftTickets queries the remaining-ticket schedule for one station pair on
// the given date (YYYY-MM-DD).
func (c *Client) LeftTickets(ctx context.Context, from, to, date string) ([]TrainRecord, error) {
	query := url.Values{}
	query.Set("fromStation", from)
	query.Set("toStation", to)
	query.Set("leaveDate", date)

	body, err := c.get(ctx, "/api/v1/leftTickets", query)
	if err != nil {
		return nil, err
	}

	var records []TrainRecord
	if err := decodeEnvelope(body, &records); err != nil {
		return nil, err
	}

	for i := range records {
		records[i].Date = date
	}
	return records, nil
}

// FarePrices queries seat-class prices for one train.
func (c *Client) FarePrices(ctx context.Context, trainNo, date string) (map[string]string, error) {
	form := url.Values{}
	form.Set("trainNo", trainNo)
	form.Set("leaveDate", date)

	body, err := c.postForm(ctx, "/api/v1/farePrices", form)
	if err != nil {
		return nil, err
	}

	var prices map[string]string
	if err := decodeEnvelope(body, &prices); err != nil {
		return nil, err
	}
	return prices, nil
}

// FetchDay queries every station pair for one date. Each pair is fetched
// independently: successes are aggregated and failures collected, so one bad
// pair never discards the rest of the day's data.
func (c *Client) FetchDay(ctx context.Context, pairs []StationPair, date string) ([]TrainRecord, []FetchError) {
	var records []TrainRecord
	var failures []FetchError

	for _, pair := range pairs {
		got, err := c.LeftTickets(ctx, pair.From, pair.To, date)
		if err != nil {
			c.log.Warn("station pair fetch failed",
				zap.String("from", pair.From),
				zap.String("to", pair.To),
				zap.String("date", date),
				zap.Error(err))
			failures = append(failures, FetchError{Pair: pair, Date: date, Err: err})
			continue
		}
		records = append(records, got...)
	}

	return records, failures
}
