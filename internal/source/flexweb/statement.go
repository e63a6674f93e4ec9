package flexweb

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"tradecast/internal/api"
	"tradecast/internal/logger"
	"tradecast/internal/source/flexquery"
)

// The web service answers SendRequest with a reference code, then
// serves the statement itself once generation finishes. While the
// statement is still being generated, GetStatement answers with
// another status document instead of the report.
const (
	sendRequestPath  = "/FlexStatementService.SendRequest"
	getStatementPath = "/FlexStatementService.GetStatement"
	apiVersion       = "3"

	// Web service error code for a statement that is not ready yet.
	codeInProgress = "1019"
)

type statusResponse struct {
	XMLName       xml.Name `xml:"FlexStatementResponse"`
	Status        string   `xml:"Status"`
	ReferenceCode string   `xml:"ReferenceCode"`
	ErrorCode     string   `xml:"ErrorCode"`
	ErrorMessage  string   `xml:"ErrorMessage"`
}

type queryResponse struct {
	XMLName    xml.Name        `xml:"FlexQueryResponse"`
	Statements []flexStatement `xml:"FlexStatements>FlexStatement"`
}

type flexStatement struct {
	WhenGenerated string                  `xml:"whenGenerated,attr"`
	TradeConfirms []flexquery.TradeRow    `xml:"TradeConfirms>TradeConfirm"`
	OpenPositions []flexquery.PositionRow `xml:"OpenPositions>OpenPosition"`
}

// requestStatement asks the service to generate the query and returns
// the reference code to collect it with.
func (s *Source) requestStatement(ctx context.Context, queryID string) (string, error) {
	req := api.NewRequest(http.MethodGet, sendRequestPath).
		WithContext(ctx).
		WithQuery("t", s.cfg.Token).
		WithQuery("q", queryID).
		WithQuery("v", apiVersion)

	resp, err := s.client.DoWithRetry(req, nil)
	if err != nil {
		return "", fmt.Errorf("request statement %s: %w", queryID, err)
	}

	var status statusResponse
	if err := xml.Unmarshal(resp.Body, &status); err != nil {
		return "", fmt.Errorf("parse statement response: %w", err)
	}
	if status.Status != "Success" {
		return "", fmt.Errorf("statement request %s failed: %s %s", queryID, status.ErrorCode, status.ErrorMessage)
	}
	return status.ReferenceCode, nil
}

// collectStatement polls GetStatement until the report is ready.
func (s *Source) collectStatement(ctx context.Context, referenceCode string) (*flexStatement, error) {
	for attempt := 1; ; attempt++ {
		req := api.NewRequest(http.MethodGet, getStatementPath).
			WithContext(ctx).
			WithQuery("t", s.cfg.Token).
			WithQuery("q", referenceCode).
			WithQuery("v", apiVersion)

		resp, err := s.client.DoWithRetry(req, nil)
		if err != nil {
			return nil, fmt.Errorf("collect statement: %w", err)
		}

		var status statusResponse
		if xml.Unmarshal(resp.Body, &status) == nil {
			if status.ErrorCode != codeInProgress {
				return nil, fmt.Errorf("statement failed: %s %s", status.ErrorCode, status.ErrorMessage)
			}
			if attempt >= s.maxPolls {
				return nil, fmt.Errorf("statement not ready after %d polls", attempt)
			}
			logger.Debug(ctx, "Statement generation in progress", "source_id", s.sourceID, "attempt", attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.pollWait):
			}
			continue
		}

		var report queryResponse
		if err := xml.Unmarshal(resp.Body, &report); err != nil {
			return nil, fmt.Errorf("parse statement: %w", err)
		}
		if len(report.Statements) == 0 {
			return nil, fmt.Errorf("statement contained no data")
		}
		return &report.Statements[0], nil
	}
}

// download runs one full SendRequest/GetStatement cycle for a query.
func (s *Source) download(ctx context.Context, queryID string) (*flexStatement, error) {
	referenceCode, err := s.requestStatement(ctx, queryID)
	if err != nil {
		return nil, err
	}
	return s.collectStatement(ctx, referenceCode)
}
