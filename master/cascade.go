package master

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/foreman/build"
)

// cascade releases everything the master owned, in strict order:
//
//  1. Resource-type observers are notified in registration order.
//     Observer failures are logged and never stop the cascade.
//  2. Every incomplete build owned by the master is finished with the
//     Retry result — logs first, then steps, then the build itself, so
//     no step closes while its logs are still open.
//  3. Build requests claimed by the master are released in one bulk
//     operation.
//
// Every stage queries only still-open rows and finishing an already
// finished row touches nothing, so re-running the cascade against a
// cleaned-up master is an inexpensive no-op. A store failure stops the
// cascade at the stage it was on and is returned to the caller; the
// stages already completed keep their effect.
func (r *Registry) cascade(ctx context.Context, masterID int64, name string, forced bool) error {
	ctx, span := r.tracer.Start(ctx, "foreman.master.cascade",
		trace.WithAttributes(
			attribute.Int64("foreman.master.id", masterID),
			attribute.String("foreman.master.name", name),
			attribute.Bool("foreman.cascade.forced", forced),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	start := time.Now()
	err := r.runCascade(ctx, masterID)

	attrs := metric.WithAttributes(attribute.Bool("forced", forced))
	r.cascadeDuration.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil {
		r.cascadeFailures.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("deactivation cascade failed",
			slog.Int64("master_id", masterID),
			slog.String("name", name),
			slog.Bool("forced", forced),
			slog.String("error", err.Error()),
		)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *Registry) runCascade(ctx context.Context, masterID int64) error {
	// Observer fan-out first, so collaborators holding state keyed by
	// this master (worker assignments, builder and scheduler ownership)
	// release it before the build records change hands.
	r.exts.EmitMasterDeactivated(ctx, masterID)

	// Finish every incomplete build the master owned. Logs close before
	// their step, steps before their build.
	builds, err := r.builds.IncompleteBuilds(ctx, masterID)
	if err != nil {
		return fmt.Errorf("master: query incomplete builds for %d: %w", masterID, err)
	}
	for _, b := range builds {
		steps, err := r.builds.OpenSteps(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("master: query open steps for build %d: %w", b.ID, err)
		}
		for _, s := range steps {
			logs, err := r.builds.OpenLogs(ctx, s.ID)
			if err != nil {
				return fmt.Errorf("master: query open logs for step %d: %w", s.ID, err)
			}
			for _, l := range logs {
				if err := r.builds.FinishLog(ctx, l.ID); err != nil {
					return fmt.Errorf("master: finish log %d: %w", l.ID, err)
				}
			}
			if err := r.builds.FinishStep(ctx, s.ID, build.Retry, false); err != nil {
				return fmt.Errorf("master: finish step %d: %w", s.ID, err)
			}
		}
		if err := r.builds.FinishBuild(ctx, b.ID, build.Retry); err != nil {
			return fmt.Errorf("master: finish build %d: %w", b.ID, err)
		}
	}

	// Release every build request the master still claimed so any
	// surviving master can claim it.
	claimed, err := r.requests.ClaimedBuildRequests(ctx, masterID)
	if err != nil {
		return fmt.Errorf("master: query claimed requests for %d: %w", masterID, err)
	}
	if len(claimed) > 0 {
		ids := make([]int64, len(claimed))
		for i, br := range claimed {
			ids[i] = br.ID
		}
		if err := r.requests.UnclaimBuildRequests(ctx, ids); err != nil {
			return fmt.Errorf("master: unclaim %d requests for %d: %w", len(ids), masterID, err)
		}
	}

	return nil
}
