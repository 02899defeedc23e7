// Package candidates produces the bounded list of plausible targets for an
// unmatched transaction via indexed rule lookups. Each candidate carries
// the tags saying why it qualified; scoring happens elsewhere.
package candidates

import (
	"sort"

	"finrecon/bankrecon/internal/config"
	"finrecon/bankrecon/internal/models"
	"finrecon/bankrecon/internal/normalizer"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// SetLogger allows setting a configured logger.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// Generator holds the rule indexes over one batch's open targets. It is
// built once per batch, up front; candidate generation itself does no I/O.
type Generator struct {
	targets map[string]*models.Target
	byRef   map[string][]string   // normalized reference -> target IDs
	byToken map[string][]string   // partner name token -> target IDs
	byAmt   []amountEntry         // sorted by remaining amount
	aliases map[string][]string   // partner name -> alternative spellings
}

type amountEntry struct {
	remaining decimal.Decimal
	id        string
}

// NewGenerator indexes the open targets. Aliases may be nil.
func NewGenerator(targets []models.Target, aliases map[string][]string) *Generator {
	g := &Generator{
		targets: make(map[string]*models.Target, len(targets)),
		byRef:   make(map[string][]string),
		byToken: make(map[string][]string),
		aliases: aliases,
	}

	for i := range targets {
		t := &targets[i]
		g.targets[t.ID] = t

		if ref := normalizer.NormalizeReference(t.Reference); ref != "" {
			g.byRef[ref] = append(g.byRef[ref], t.ID)
		}
		for _, tok := range NameTokens(t.PartnerName) {
			g.byToken[tok] = append(g.byToken[tok], t.ID)
		}
		for _, alias := range aliases[t.PartnerName] {
			for _, tok := range NameTokens(alias) {
				g.byToken[tok] = append(g.byToken[tok], t.ID)
			}
		}
		g.byAmt = append(g.byAmt, amountEntry{remaining: t.RemainingAmount, id: t.ID})
	}

	sort.Slice(g.byAmt, func(i, j int) bool {
		if c := g.byAmt[i].remaining.Cmp(g.byAmt[j].remaining); c != 0 {
			return c < 0
		}
		return g.byAmt[i].id < g.byAmt[j].id
	})

	return g
}

// Generate unions the rule lookups for one transaction and returns at most
// cfg.MaxCandidates candidates, ordered by target ID ascending. The order
// is deterministic regardless of map iteration.
func (g *Generator) Generate(tx *models.BankTransaction, cfg config.MatchingConfig) []models.MatchCandidate {
	hits := make(map[string]struct{})

	ref := normalizer.NormalizeReference(tx.Reference)
	if ref != "" {
		for _, id := range g.byRef[ref] {
			hits[id] = struct{}{}
		}
	}

	absAmount := tx.AbsAmount()
	loose := bandWidth(absAmount, cfg.LoosePct())
	lo := absAmount.Sub(loose)
	hi := absAmount.Add(loose)
	from := sort.Search(len(g.byAmt), func(i int) bool {
		return g.byAmt[i].remaining.GreaterThanOrEqual(lo)
	})
	for i := from; i < len(g.byAmt) && g.byAmt[i].remaining.LessThanOrEqual(hi); i++ {
		hits[g.byAmt[i].id] = struct{}{}
	}

	for _, tok := range NameTokens(tx.CounterpartName) {
		for _, id := range g.byToken[tok] {
			hits[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(hits))
	for id := range hits {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []models.MatchCandidate
	for _, id := range ids {
		t := g.targets[id]
		if t.Currency != "" && tx.Currency != "" && t.Currency != tx.Currency {
			continue
		}
		if t.RemainingAmount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		c := Qualify(tx, *t, g.aliases, cfg)
		if len(c.Tags) == 0 {
			continue
		}
		out = append(out, c)
		if len(out) >= cfg.MaxCandidates {
			break
		}
	}

	log.WithFields(logrus.Fields{
		"transaction": tx.ID,
		"candidates":  len(out),
	}).Debug("Generated match candidates")
	return out
}

// Qualify computes the full rule tag set for one (transaction, target)
// pair. It is also used standalone when a conflict retry re-evaluates a
// refreshed target.
func Qualify(tx *models.BankTransaction, target models.Target, aliases map[string][]string, cfg config.MatchingConfig) models.MatchCandidate {
	t := &target
	c := models.MatchCandidate{
		TransactionID: tx.ID,
		TargetType:    t.Type,
		TargetID:      t.ID,
		Remaining:     t.RemainingAmount,
		DueDate:       t.DueDate,
		Version:       t.Version,
	}

	txRef := normalizer.NormalizeReference(tx.Reference)
	if txRef != "" && txRef == normalizer.NormalizeReference(t.Reference) {
		c.Tags = append(c.Tags, models.TagExactReference)
	}

	absAmount := tx.AbsAmount()
	c.AmountDiff = absAmount.Sub(t.RemainingAmount).Abs()
	switch {
	case c.AmountDiff.LessThanOrEqual(bandWidth(t.RemainingAmount, cfg.TightPct())):
		c.Tags = append(c.Tags, models.TagAmountTight)
	case c.AmountDiff.LessThanOrEqual(bandWidth(t.RemainingAmount, cfg.LoosePct())):
		c.Tags = append(c.Tags, models.TagAmountLoose)
	}

	switch MatchPartner(tx.CounterpartName, t.PartnerName, aliases[t.PartnerName], cfg.FuzzyRatioThreshold) {
	case PartnerExact:
		c.Tags = append(c.Tags, models.TagPartnerExact)
	case PartnerFuzzy:
		c.Tags = append(c.Tags, models.TagPartnerFuzzy)
	}

	grace := t.DueDate.AddDate(0, 0, cfg.GraceDays)
	if !tx.TransactionDate.Before(t.IssueDate) && !tx.TransactionDate.After(grace) {
		c.Tags = append(c.Tags, models.TagDateWindow)
	}

	return c
}

func bandWidth(base decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	return base.Abs().Mul(pct).Div(decimal.NewFromInt(100))
}
