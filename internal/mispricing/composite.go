package mispricing

import (
	"sort"
	"sync"

	"github.com/alanyoungcy/polymarketbot/internal/market"
)

// CompositeDetector fans out market data and detection calls across a set
// of child detectors, consolidating the results: sorted by
// ExpectedProfit descending, de-duplicated by (Type, TargetInstrument)
// retaining the highest-profit entry.
type CompositeDetector struct {
	mu       sync.Mutex
	params   Params
	children []Detector
	onDetect Callback
	onExpire ExpiryCallback
}

// NewCompositeDetector constructs a composite over the given children.
func NewCompositeDetector(params Params, children ...Detector) *CompositeDetector {
	c := &CompositeDetector{params: params, children: children}
	for _, child := range children {
		child.SetExpiryCallback(func(o Opportunity) {
			c.mu.Lock()
			cb := c.onExpire
			c.mu.Unlock()
			if cb != nil {
				cb(o)
			}
		})
	}
	return c
}

// AddDetector appends a child detector.
func (c *CompositeDetector) AddDetector(d Detector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children = append(c.children, d)
	d.SetExpiryCallback(func(o Opportunity) {
		c.mu.Lock()
		cb := c.onExpire
		c.mu.Unlock()
		if cb != nil {
			cb(o)
		}
	})
}

// RemoveDetector removes the child at index, if in range.
func (c *CompositeDetector) RemoveDetector(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.children) {
		return
	}
	c.children = append(c.children[:index], c.children[index+1:]...)
}

// Name implements Detector.
func (c *CompositeDetector) Name() string { return "composite" }

// UpdateMarketData implements Detector, fanning out to every child.
func (c *CompositeDetector) UpdateMarketData(snap market.MarketSnapshot) {
	c.mu.Lock()
	children := make([]Detector, len(c.children))
	copy(children, c.children)
	c.mu.Unlock()
	for _, child := range children {
		child.UpdateMarketData(snap)
	}
}

// consolidate sorts by ExpectedProfit descending and deduplicates by
// (Type, TargetInstrument), keeping the highest-profit entry per key.
func consolidate(opportunities []Opportunity) []Opportunity {
	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].ExpectedProfit > opportunities[j].ExpectedProfit
	})

	seen := make(map[string]bool)
	out := make([]Opportunity, 0, len(opportunities))
	for _, o := range opportunities {
		key := string(o.Type) + "|" + o.TargetInstrument
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, o)
	}
	return out
}

// DetectOpportunities implements Detector, fanning out to every child and
// consolidating the results.
func (c *CompositeDetector) DetectOpportunities() []Opportunity {
	c.mu.Lock()
	children := make([]Detector, len(c.children))
	copy(children, c.children)
	c.mu.Unlock()

	var all []Opportunity
	for _, child := range children {
		all = append(all, child.DetectOpportunities()...)
	}
	consolidated := consolidate(all)

	c.mu.Lock()
	cb := c.onDetect
	c.mu.Unlock()
	if cb != nil {
		for _, o := range consolidated {
			cb(o)
		}
	}
	return consolidated
}

// SetDetectionCallback implements Detector. Note this callback fires only
// on the consolidated set from DetectOpportunities, not on each child's
// individual detections (those still fire the child's own callback, if
// set separately).
func (c *CompositeDetector) SetDetectionCallback(cb Callback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDetect = cb
}

// SetExpiryCallback implements Detector, applying to every current and
// future child.
func (c *CompositeDetector) SetExpiryCallback(cb ExpiryCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpire = cb
}

// UpdateParameters implements Detector, propagating to every child.
func (c *CompositeDetector) UpdateParameters(params Params) {
	c.mu.Lock()
	c.params = params
	children := make([]Detector, len(c.children))
	copy(children, c.children)
	c.mu.Unlock()
	for _, child := range children {
		child.UpdateParameters(params)
	}
}
