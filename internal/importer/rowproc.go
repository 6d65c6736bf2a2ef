package importer

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"hatcherycore/internal/core"
	"hatcherycore/pkg/domain"
)

// RowContext carries one row through the per-row pipeline and into the
// variant's post steps.
type RowContext struct {
	Row      Row
	Config   ImportConfig
	Catalog  ReferenceCatalog
	Resolver *Resolver

	Date     time.Time
	Location domain.Location
	Group    *ResolvedGroup

	Log     *Log
	entered bool
}

// MarkEntered flags the row as having written at least one entity.
func (rc *RowContext) MarkEntered() { rc.entered = true }

// PostStep is a variant-specific addition to the shared per-row pipeline. It
// runs after the common sub-operations with the row's resolved location
// available.
type PostStep func(ctx context.Context, rc *RowContext) error

// rowProcessor executes the shared per-row pipeline. Sub-operations are
// independent: a failure in one aborts the row but entities written by
// earlier sub-operations stay committed.
type rowProcessor struct {
	cfg     ImportConfig
	res     *Resolver
	catalog ReferenceCatalog
	log     *Log

	caughtByLink  map[string]int
	observedByLoc map[string]int
	linkOrder     []string
	locOrder      []string
}

func newRowProcessor(cfg ImportConfig, res *Resolver, catalog ReferenceCatalog, log *Log) *rowProcessor {
	return &rowProcessor{
		cfg:           cfg,
		res:           res,
		catalog:       catalog,
		log:           log,
		caughtByLink:  map[string]int{},
		observedByLoc: map[string]int{},
	}
}

// process runs the pipeline for one electrofishing row. The returned flag
// reports whether the row wrote at least one entity.
func (p *rowProcessor) process(ctx context.Context, row Row, group *ResolvedGroup) (bool, error) {
	date, err := RowDate(
		p.cfg.Cell(row, FieldYear),
		p.cfg.Cell(row, FieldMonth),
		p.cfg.Cell(row, FieldDay),
		p.cfg.Cell(row, FieldClock),
	)
	if err != nil {
		return false, err
	}

	caught, err := optionalCount(p.cfg.Cell(row, FieldFishCaught))
	if err != nil {
		return false, err
	}
	observed, err := optionalCount(p.cfg.Cell(row, FieldFishObserved))
	if err != nil {
		return false, err
	}
	if caught > 0 && group == nil {
		return false, errors.New("fish caught but no destination container on the row")
	}

	rc := &RowContext{
		Row:      row,
		Config:   p.cfg,
		Catalog:  p.catalog,
		Resolver: p.res,
		Date:     date,
		Group:    group,
		Log:      p.log,
	}

	if err := p.resolveLocation(ctx, rc); err != nil {
		return rc.entered, err
	}
	if group != nil {
		created, err := p.res.LinkGroupToLocation(ctx, group.Group.ID, rc.Location.ID)
		if err != nil {
			return rc.entered, err
		}
		if created {
			rc.MarkEntered()
		}
	}

	if err := p.recordCrew(ctx, rc); err != nil {
		return rc.entered, err
	}
	if err := p.recordTemperature(ctx, rc); err != nil {
		return rc.entered, err
	}
	if err := p.recordTag(ctx, rc); err != nil {
		return rc.entered, err
	}

	for _, step := range p.cfg.PostSteps {
		if err := step(ctx, rc); err != nil {
			return rc.entered, err
		}
	}

	// Tallies accumulate only once the whole row has gone through, so a
	// failed row never leaks into the finalizing aggregates.
	if caught > 0 {
		if _, seen := p.caughtByLink[group.Link.ID]; !seen {
			p.linkOrder = append(p.linkOrder, group.Link.ID)
		}
		p.caughtByLink[group.Link.ID] += caught
		rc.MarkEntered()
	}
	if observed > 0 {
		if _, seen := p.observedByLoc[rc.Location.ID]; !seen {
			p.locOrder = append(p.locOrder, rc.Location.ID)
		}
		p.observedByLoc[rc.Location.ID] += observed
		rc.MarkEntered()
	}
	return rc.entered, nil
}

// resolveLocation builds the row's location from river, site, and
// coordinates. A missing site with coordinates present degrades to a soft
// warning; neither site nor coordinates is a hard row failure.
func (p *rowProcessor) resolveLocation(ctx context.Context, rc *RowContext) error {
	river, err := p.catalog.RiverByName(p.cfg.Cell(rc.Row, FieldRiver))
	if err != nil {
		return err
	}

	lat, err := RoundCoord(p.cfg.Cell(rc.Row, FieldLatitude), coordPlaces)
	if err != nil {
		return err
	}
	lon, err := RoundCoord(p.cfg.Cell(rc.Row, FieldLongitude), coordPlaces)
	if err != nil {
		return err
	}

	loc := domain.Location{
		Category:   core.LocationCategorySite,
		RiverID:    river.ID,
		Latitude:   lat,
		Longitude:  lon,
		RecordedAt: rc.Date,
		Comments:   CleanCell(p.cfg.Cell(rc.Row, FieldComments)),
	}

	siteName := p.cfg.Cell(rc.Row, FieldSite)
	if siteName != "" {
		site, err := p.catalog.SiteByName(siteName, river.ID)
		switch {
		case err == nil:
			loc.ReleaseSiteID = &site.ID
		case lat != nil || lon != nil:
			p.log.Warnf("row %d: site %q not catalogued, keeping coordinates only", rc.Row.Index, siteName)
		default:
			return err
		}
	} else if lat == nil && lon == nil {
		return errors.New("no site and no coordinates on the row")
	}

	resolved, outcome, err := p.res.ResolveOrCreateLocation(ctx, loc)
	if err != nil {
		return err
	}
	rc.Location = resolved
	if outcome.Created() {
		rc.MarkEntered()
	}
	return nil
}

// recordCrew splits the crew cell on common separators and records one
// personnel entry per member, skipping names already recorded at the
// location.
func (p *rowProcessor) recordCrew(ctx context.Context, rc *RowContext) error {
	cell := p.cfg.Cell(rc.Row, FieldCrew)
	if cell == "" {
		return nil
	}
	for _, name := range splitNames(cell) {
		created, err := p.recordPersonnel(ctx, rc.Location.ID, p.catalog.CrewMember.ID, name)
		if err != nil {
			return err
		}
		if created {
			rc.MarkEntered()
		}
	}
	return nil
}

// CrewLeadStep records the crew-lead column as a personnel entry with the
// lead role. Variants whose sheets carry a lead column register it as a
// post step.
func CrewLeadStep(ctx context.Context, rc *RowContext) error {
	name := CleanCell(rc.Config.Cell(rc.Row, FieldCrewLead))
	if name == "" {
		return nil
	}
	p := rc.Resolver
	exists := false
	err := p.store.View(ctx, func(v domain.TransactionView) error {
		for _, pe := range v.ListPersonnelEntries() {
			if pe.LocationID == rc.Location.ID && pe.RoleCodeID == rc.Catalog.CrewLead.ID && pe.Name == name {
				exists = true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = p.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, cerr := tx.CreatePersonnelEntry(domain.PersonnelEntry{
			LocationID: rc.Location.ID,
			RoleCodeID: rc.Catalog.CrewLead.ID,
			Name:       name,
		})
		return cerr
	})
	if err != nil {
		return err
	}
	rc.MarkEntered()
	return nil
}

func (p *rowProcessor) recordPersonnel(ctx context.Context, locationID, roleID, name string) (bool, error) {
	exists := false
	err := p.res.store.View(ctx, func(v domain.TransactionView) error {
		for _, pe := range v.ListPersonnelEntries() {
			if pe.LocationID == locationID && pe.RoleCodeID == roleID && pe.Name == name {
				exists = true
				return nil
			}
		}
		return nil
	})
	if err != nil || exists {
		return false, err
	}
	_, err = p.res.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, cerr := tx.CreatePersonnelEntry(domain.PersonnelEntry{
			LocationID: locationID,
			RoleCodeID: roleID,
			Name:       name,
		})
		return cerr
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// recordTemperature parses the temperature cell, tolerating a trailing unit,
// and records one environmental reading at the row's location.
func (p *rowProcessor) recordTemperature(ctx context.Context, rc *RowContext) error {
	cell := p.cfg.Cell(rc.Row, FieldTemperature)
	if cell == "" {
		return nil
	}
	value, unit, err := SplitValueUnit(cell)
	if err != nil {
		return err
	}
	exists := false
	err = p.res.store.View(ctx, func(v domain.TransactionView) error {
		for _, er := range v.ListEnvReadings() {
			if er.LocationID == rc.Location.ID && er.EnvCodeID == p.catalog.Temperature.ID {
				exists = true
				return nil
			}
		}
		return nil
	})
	if err != nil || exists {
		return err
	}
	_, err = p.res.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, cerr := tx.CreateEnvReading(domain.EnvReading{
			LocationID: rc.Location.ID,
			EnvCodeID:  p.catalog.Temperature.ID,
			Value:      value,
			Unit:       unit,
		})
		return cerr
	})
	if err != nil {
		return err
	}
	rc.MarkEntered()
	return nil
}

// recordTag resolves the row's tagged animal, if the variant maps a tag
// column, and attaches it to the location.
func (p *rowProcessor) recordTag(ctx context.Context, rc *RowContext) error {
	tag := CleanCell(p.cfg.Cell(rc.Row, FieldTag))
	if tag == "" {
		return nil
	}
	year, collLabel, err := SplitYearColl(p.cfg.Cell(rc.Row, FieldYearColl))
	if err != nil {
		return err
	}
	stock, err := p.catalog.StockByName(p.cfg.Cell(rc.Row, FieldRiver))
	if err != nil {
		return err
	}
	coll, err := p.catalog.CollectionByLabel(collLabel)
	if err != nil {
		return err
	}
	ind, outcome, err := p.res.ResolveOrCreateIndividual(ctx, domain.Individual{
		Species:      p.res.species,
		StockID:      stock.ID,
		CollectionID: coll.ID,
		Year:         year,
		Tag:          tag,
		Valid:        true,
	})
	if err != nil {
		return err
	}
	if outcome.Created() {
		rc.MarkEntered()
	}
	linked, err := p.res.LinkIndividualToLocation(ctx, ind.ID, rc.Location.ID)
	if err != nil {
		return err
	}
	if linked {
		rc.MarkEntered()
	}
	return nil
}

// finalize writes the aggregated caught and observed tallies, one count per
// container placement and per observation location, in first-seen order.
// A conflict means a prior run already recorded the tally; it is logged and
// skipped rather than doubled.
func (p *rowProcessor) finalize(ctx context.Context) error {
	for _, linkID := range p.linkOrder {
		if err := p.writeCount(ctx, domain.Count{
			CountCodeID:     p.catalog.FishCaught.ID,
			ContainerLinkID: &linkID,
			Value:           p.caughtByLink[linkID],
		}); err != nil {
			return err
		}
	}
	for _, locID := range p.locOrder {
		if err := p.writeCount(ctx, domain.Count{
			CountCodeID: p.catalog.FishObserved.ID,
			LocationID:  &locID,
			Value:       p.observedByLoc[locID],
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *rowProcessor) writeCount(ctx context.Context, c domain.Count) error {
	_, err := p.res.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, cerr := tx.CreateCount(c)
		return cerr
	})
	if err == nil {
		return nil
	}
	var conflict domain.ConflictError
	if errors.As(err, &conflict) {
		p.log.Warnf("count already recorded, keeping the existing tally: %v", conflict)
		return nil
	}
	return err
}

func optionalCount(cell string) (int, error) {
	cell = CleanNumericText(cell)
	if cell == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(cell)
	if err != nil {
		return 0, &ParseError{Input: cell, Msg: "not a whole number"}
	}
	if n < 0 {
		return 0, &ParseError{Input: cell, Msg: "negative count"}
	}
	return n, nil
}

func splitNames(cell string) []string {
	cell = strings.NewReplacer(";", ",", "/", ",", "&", ",").Replace(cell)
	var names []string
	for _, part := range strings.Split(cell, ",") {
		if name := CleanCell(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
