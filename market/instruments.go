package market

// InstrumentMeta carries the per-instrument trading constraints the sizing
// code needs. Margin rates differ by direction: financed longs and securities
// shorts carry different collateral requirements.
type InstrumentMeta struct {
	Name            string
	LotSize         float64
	MinimumTrade    float64
	LongMarginRate  float64
	ShortMarginRate float64
}

// MarginRate returns the collateral fraction for a signed position.
func (m InstrumentMeta) MarginRate(units float64) float64 {
	if units < 0 {
		return m.ShortMarginRate
	}
	return m.LongMarginRate
}

// Catalog resolves instrument metadata. Unknown instruments fall back to the
// catalog default so a pair delivered by the modeling feed is always tradable.
type Catalog struct {
	byName map[string]InstrumentMeta
	def    InstrumentMeta
}

func NewCatalog(def InstrumentMeta) *Catalog {
	return &Catalog{
		byName: make(map[string]InstrumentMeta),
		def:    def,
	}
}

func (c *Catalog) Add(m InstrumentMeta) {
	c.byName[m.Name] = m
}

func (c *Catalog) Get(name string) InstrumentMeta {
	if m, ok := c.byName[name]; ok {
		return m
	}
	m := c.def
	m.Name = name
	return m
}
