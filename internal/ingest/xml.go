package ingest

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// xmlTender mirrors one <tender> element of a register feed. National
// registers publish these feeds in assorted legacy encodings, hence the
// charset reader below.
type xmlTender struct {
	ID              string      `xml:"id"`
	Title           string      `xml:"title"`
	Category        string      `xml:"category"`
	Institution     string      `xml:"institution"`
	PublishedAt     string      `xml:"published_at"`
	ClosingAt       string      `xml:"closing_at"`
	AwardedAt       string      `xml:"awarded_at"`
	EstimatedValue  float64     `xml:"estimated_value"`
	ActualValue     float64     `xml:"actual_value"`
	Status          string      `xml:"status"`
	Procedure       string      `xml:"procedure"`
	Evaluation      string      `xml:"evaluation"`
	SecurityDeposit float64     `xml:"security_deposit"`
	CPVCode         string      `xml:"cpv_code"`
	LotCount        int         `xml:"lot_count"`
	Bidders         []xmlBidder `xml:"bidders>bidder"`
}

type xmlBidder struct {
	Company      string  `xml:"company"`
	BidAmount    float64 `xml:"bid_amount"`
	Rank         int     `xml:"rank"`
	Winner       bool    `xml:"winner"`
	Disqualified bool    `xml:"disqualified"`
}

// streamTenders decodes <tender> elements from a register feed and sends
// them to a channel. Both channels close when the feed is exhausted.
func streamTenders(ctx context.Context, r io.Reader) (<-chan xmlTender, <-chan error) {
	outCh := make(chan xmlTender, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := xml.NewDecoder(r)
		decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
			enc, err := htmlindex.Get(charset)
			if err != nil {
				return nil, eris.Wrapf(err, "ingest: unsupported charset %q", charset)
			}
			return enc.NewDecoder().Reader(input), nil
		}

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "ingest: context cancelled")
				return
			}

			tok, err := decoder.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "ingest: read token")
				return
			}

			se, ok := tok.(xml.StartElement)
			if !ok || se.Name.Local != "tender" {
				continue
			}

			var t xmlTender
			if err := decoder.DecodeElement(&t, &se); err != nil {
				errCh <- eris.Wrap(err, "ingest: decode tender")
				return
			}

			select {
			case outCh <- t:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: context cancelled")
				return
			}
		}
	}()

	return outCh, errCh
}
