package api

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"well-go/internal/well"
)

const dateLayout = "2006-01-02"

func (s *Server) appendRecord(ctx *fasthttp.RequestCtx, c context.Context, userID string) {
	var rec well.Record
	if err := json.Unmarshal(ctx.PostBody(), &rec); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return
	}
	// Records are always filed under the authenticated user.
	rec.UserID = userID

	id, err := s.svc.AppendRecord(c, &rec)
	if err != nil {
		s.writeServiceError(ctx, "append record", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, map[string]string{"id": id})
}

func (s *Server) queryRecords(ctx *fasthttp.RequestCtx, c context.Context, userID string) {
	args := ctx.QueryArgs()

	var filter well.RecordFilter
	for _, t := range args.PeekMulti("type") {
		filter.Types = append(filter.Types, well.RecordType(t))
	}
	var err error
	if filter.From, err = s.parseTime(args.Peek("from")); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid from: "+err.Error())
		return
	}
	if filter.To, err = s.parseTime(args.Peek("to")); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid to: "+err.Error())
		return
	}

	records, err := s.svc.QueryRecords(c, userID, filter)
	if err != nil {
		s.writeServiceError(ctx, "query records", err)
		return
	}
	if records == nil {
		records = []*well.Record{}
	}
	writeJSON(ctx, fasthttp.StatusOK, records)
}

func (s *Server) stats(period well.Period) userHandler {
	return func(ctx *fasthttp.RequestCtx, c context.Context, userID string) {
		ref, err := s.parseTime(ctx.QueryArgs().Peek("date"))
		if err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "invalid date: "+err.Error())
			return
		}

		agg, err := s.svc.ComputeAggregate(c, userID, period, ref)
		if err != nil {
			// The aggregate is the empty window; still serve it.
			s.logger.Warn("computing stats", "user", userID, "period", period, "error", err)
		}
		writeJSON(ctx, fasthttp.StatusOK, agg)
	}
}

func (s *Server) summary(ctx *fasthttp.RequestCtx, c context.Context, userID string) {
	sum, err := s.svc.GetSummaryStats(c, userID)
	if err != nil {
		s.logger.Warn("computing summary", "user", userID, "error", err)
	}
	writeJSON(ctx, fasthttp.StatusOK, sum)
}

func (s *Server) getXP(ctx *fasthttp.RequestCtx, c context.Context, userID string) {
	total, err := s.svc.GetXP(c, userID)
	if err != nil {
		s.logger.Warn("reading xp", "user", userID, "error", err)
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]int64{"total_xp": total, "level": well.LevelForXP(total)})
}

type addXPRequest struct {
	Amount int64  `json:"amount"`
	Label  string `json:"label"`
}

func (s *Server) addXP(ctx *fasthttp.RequestCtx, c context.Context, userID string) {
	var req addXPRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return
	}

	event, err := s.svc.AwardXP(c, userID, req.Amount, req.Label)
	if err != nil {
		s.writeServiceError(ctx, "add xp", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, event)
}

func (s *Server) getLevel(ctx *fasthttp.RequestCtx, c context.Context, userID string) {
	level, err := s.svc.GetLevel(c, userID)
	if err != nil {
		s.logger.Warn("reading level", "user", userID, "error", err)
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]int64{"level": level})
}

func (s *Server) getProgress(ctx *fasthttp.RequestCtx, c context.Context, userID string) {
	progress, err := s.svc.GetProgress(c, userID)
	if err != nil {
		s.logger.Warn("reading progress", "user", userID, "error", err)
	}
	writeJSON(ctx, fasthttp.StatusOK, progress)
}

func (s *Server) getBonus(ctx *fasthttp.RequestCtx, c context.Context, userID string) {
	writeJSON(ctx, fasthttp.StatusOK, s.svc.CalculateXPBonus(c, userID))
}

func (s *Server) xpHistory(ctx *fasthttp.RequestCtx, c context.Context, userID string) {
	limit := 0
	if raw := ctx.QueryArgs().Peek("limit"); len(raw) > 0 {
		n, err := strconv.Atoi(string(raw))
		if err != nil || n < 0 {
			writeError(ctx, fasthttp.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	events, err := s.svc.XPHistory(c, userID, limit)
	if err != nil {
		s.logger.Warn("listing xp history", "user", userID, "error", err)
	}
	if events == nil {
		events = []*well.XPEvent{}
	}
	writeJSON(ctx, fasthttp.StatusOK, events)
}

func (s *Server) insights(ctx *fasthttp.RequestCtx, c context.Context, userID string) {
	raw, _ := ctx.UserValue("period").(string)
	period, err := well.ParsePeriod(raw)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	regenerate := ctx.QueryArgs().GetBool("regenerate")

	writeJSON(ctx, fasthttp.StatusOK, s.svc.GetInsights(c, userID, period, regenerate))
}

// parseTime accepts a calendar date in the service location or an RFC 3339
// timestamp. Empty input yields the zero time.
func (s *Server) parseTime(raw []byte) (time.Time, error) {
	v := strings.TrimSpace(string(raw))
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(dateLayout, v, s.svc.Location()); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
