package engine

import (
	"context"
	"errors"
	"fmt"
)

// RodFetchFunc renders a page in the shared browser. main passes
// Scraper.Render so that engine/ never imports scraper/.
type RodFetchFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// RodEngine is one browser tier of the race. The tier pins the stealth mode
// whatever the caller asked for, so "rod" and "rod-stealth" never render the
// same page the same way twice.
type RodEngine struct {
	render  RodFetchFunc
	stealth bool
}

// NewRodEngine returns the "rod" tier, or "rod-stealth" when stealth is set.
func NewRodEngine(render RodFetchFunc, stealth bool) *RodEngine {
	return &RodEngine{render: render, stealth: stealth}
}

func (e *RodEngine) Name() string {
	if e.stealth {
		return "rod-stealth"
	}
	return "rod"
}

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.render == nil {
		return nil, fmt.Errorf("%s: no renderer configured", e.Name())
	}

	tier := *req
	tier.Stealth = e.stealth

	result, err := e.render(ctx, &tier)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name(), err)
	}
	if result == nil {
		return nil, fmt.Errorf("%s: %w", e.Name(), errors.New("renderer returned no page"))
	}

	result.EngineName = e.Name()
	return result, nil
}
