package repo

import (
	"fmt"

	"naimuAdmin/internal/console/workflow"
)

// TableSpec maps an entity type onto its SQL table.
type TableSpec struct {
	Entity         string
	Table          string
	Columns        []string
	IDColumn       string
	StatusColumn   string
	KeywordColumns []string
	// Filters maps filter keys onto columns compared by equality.
	Filters    map[string]string
	DateColumn string
	// Stamps maps a target status onto a column set to CURRENT_TIMESTAMP
	// when the row enters that status.
	Stamps map[string]string
}

func (t TableSpec) withDefaults() TableSpec {
	if t.IDColumn == "" {
		t.IDColumn = "id"
	}
	if t.StatusColumn == "" {
		t.StatusColumn = "status"
	}
	return t
}

func (t TableSpec) validate() error {
	if t.Entity == "" {
		return fmt.Errorf("repo: spec entity is required")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("repo: spec %q has no columns", t.Entity)
	}
	idents := []string{t.Table, t.IDColumn, t.StatusColumn}
	idents = append(idents, t.Columns...)
	idents = append(idents, t.KeywordColumns...)
	for _, col := range t.Filters {
		idents = append(idents, col)
	}
	for _, col := range t.Stamps {
		idents = append(idents, col)
	}
	if t.DateColumn != "" {
		idents = append(idents, t.DateColumn)
	}
	for _, id := range idents {
		if !identifier.MatchString(id) {
			return fmt.Errorf("repo: spec %q: invalid identifier %q", t.Entity, id)
		}
	}
	return nil
}

// DefaultSpecs returns the table layout of the console's entity types.
func DefaultSpecs() []TableSpec {
	return []TableSpec{
		{
			Entity:         workflow.EntityDriver,
			Table:          "drivers",
			Columns:        []string{"id", "name", "surname", "phone", "city", "status", "created_at"},
			KeywordColumns: []string{"name", "surname", "phone"},
			Filters:        map[string]string{"status": "status", "city": "city"},
			DateColumn:     "created_at",
		},
		{
			Entity:         workflow.EntityRider,
			Table:          "passengers",
			Columns:        []string{"id", "name", "phone", "city", "status", "created_at"},
			KeywordColumns: []string{"name", "phone"},
			Filters:        map[string]string{"status": "status", "city": "city"},
			DateColumn:     "created_at",
		},
		{
			Entity:         workflow.EntityVehicle,
			Table:          "vehicles",
			Columns:        []string{"id", "brand", "model", "plate_number", "color", "status", "created_at"},
			KeywordColumns: []string{"brand", "model", "plate_number"},
			Filters:        map[string]string{"status": "status"},
			DateColumn:     "created_at",
		},
		{
			Entity:         workflow.EntityTrip,
			Table:          "orders",
			Columns:        []string{"id", "passenger_id", "driver_id", "from_address", "to_address", "price", "status", "created_at"},
			KeywordColumns: []string{"from_address", "to_address"},
			Filters:        map[string]string{"status": "status", "city": "city"},
			DateColumn:     "created_at",
		},
		{
			Entity:         workflow.EntityCarDriver,
			Table:          "car_drivers",
			Columns:        []string{"id", "car_id", "driver_id", "status", "linked_at", "released_at"},
			KeywordColumns: []string{"driver_id", "car_id"},
			Filters:        map[string]string{"status": "status"},
			DateColumn:     "linked_at",
			Stamps:         map[string]string{workflow.StatusLinked: "linked_at", workflow.StatusLeaved: "released_at"},
		},
		{
			Entity:         workflow.EntityWalletTransaction,
			Table:          "wallet_transactions",
			Columns:        []string{"id", "user_id", "user_type", "amount", "type", "status", "created_at"},
			KeywordColumns: []string{"user_id"},
			Filters:        map[string]string{"status": "status", "userType": "user_type"},
			DateColumn:     "created_at",
			Stamps:         map[string]string{workflow.WalletAccepted: "processed_at", workflow.WalletRejected: "processed_at"},
		},
		{
			Entity:         workflow.EntityContactTicket,
			Table:          "contact_tickets",
			Columns:        []string{"id", "name", "email", "subject", "status", "created_at"},
			KeywordColumns: []string{"name", "email", "subject"},
			Filters:        map[string]string{"status": "status"},
			DateColumn:     "created_at",
			Stamps:         map[string]string{workflow.StatusResolved: "resolved_at"},
		},
		{
			Entity:         workflow.EntityCoupon,
			Table:          "coupons",
			Columns:        []string{"id", "code", "discount", "valid_until", "status", "created_at"},
			KeywordColumns: []string{"code"},
			Filters:        map[string]string{"status": "status"},
			DateColumn:     "valid_until",
		},
		{
			Entity:         workflow.EntityOffer,
			Table:          "offers",
			Columns:        []string{"id", "title", "city", "status", "created_at"},
			KeywordColumns: []string{"title"},
			Filters:        map[string]string{"status": "status", "city": "city"},
			DateColumn:     "created_at",
		},
		{
			Entity:         workflow.EntityCommission,
			Table:          "commissions",
			Columns:        []string{"id", "driver_id", "order_id", "amount", "status", "created_at"},
			KeywordColumns: []string{"driver_id"},
			Filters:        map[string]string{"status": "status"},
			DateColumn:     "created_at",
			Stamps:         map[string]string{workflow.StatusCompleted: "paid_at"},
		},
	}
}
