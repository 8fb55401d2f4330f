package console

import (
	"sort"

	"naimuAdmin/internal/console/actionmenu"
	consolehttp "naimuAdmin/internal/console/http"
	"naimuAdmin/internal/console/listview"
	"naimuAdmin/internal/console/repo"
	"naimuAdmin/internal/console/workflow"
)

// Screen is the static presentation of one entity list page.
type Screen struct {
	ID          string
	Mode        actionmenu.Mode
	DetailsPath string
}

// Screens maps entity types onto their list pages.
var Screens = map[string]Screen{
	workflow.EntityDriver:            {ID: "drivers", Mode: actionmenu.ModeMenu, DetailsPath: "/admin/drivers/:id"},
	workflow.EntityRider:             {ID: "riders", Mode: actionmenu.ModeDirect},
	workflow.EntityVehicle:           {ID: "vehicles", Mode: actionmenu.ModeMenu},
	workflow.EntityTrip:              {ID: "trips", Mode: actionmenu.ModeDetails, DetailsPath: "/admin/trips/:id"},
	workflow.EntityCarDriver:         {ID: "car-drivers", Mode: actionmenu.ModeMenu},
	workflow.EntityWalletTransaction: {ID: "wallet-transactions", Mode: actionmenu.ModeMenu},
	workflow.EntityContactTicket:     {ID: "contact-tickets", Mode: actionmenu.ModeMenu},
	workflow.EntityCoupon:            {ID: "coupons", Mode: actionmenu.ModeDirect},
	workflow.EntityOffer:             {ID: "offers", Mode: actionmenu.ModeDirect},
	workflow.EntityCommission:        {ID: "commissions", Mode: actionmenu.ModeMenu},
}

// TableConfig derives the list-page configuration of a table spec.
func TableConfig(spec repo.TableSpec) listview.TableConfig {
	screen := Screens[spec.Entity]
	columns := make([]listview.Column, 0, len(spec.Columns))
	for _, col := range spec.Columns {
		columns = append(columns, listview.Column{Key: col, Label: spec.Entity + "." + col})
	}

	filterKeys := make([]string, 0, len(spec.Filters)+3)
	for key := range spec.Filters {
		filterKeys = append(filterKeys, key)
	}
	sort.Strings(filterKeys)
	if spec.DateColumn != "" {
		filterKeys = append(filterKeys, repo.FilterDate, repo.FilterDateFrom, repo.FilterDateTo)
	}

	return listview.TableConfig{
		Entity:     spec.Entity,
		ScreenID:   screen.ID,
		IDKey:      spec.IDColumn,
		StatusKey:  spec.StatusColumn,
		Columns:    columns,
		FilterKeys: filterKeys,
	}
}

// Tables builds the HTTP tables of specs.
func Tables(specs []repo.TableSpec, describer actionmenu.Describer) []consolehttp.Table {
	tables := make([]consolehttp.Table, 0, len(specs))
	for _, spec := range specs {
		cfg := TableConfig(spec)
		screen := Screens[spec.Entity]
		tables = append(tables, consolehttp.Table{
			Config: cfg,
			Presenter: actionmenu.NewPresenter(actionmenu.Config{
				Entity:      spec.Entity,
				Mode:        screen.Mode,
				IDKey:       cfg.IDKey,
				DetailsPath: screen.DetailsPath,
			}, describer),
		})
	}
	return tables
}
