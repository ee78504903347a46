package repositories

import (
	"database/sql"
	"sync"

	"github.com/freedesk/freedesk/internal/models"
)

// CustomerRepository handles database operations for customers
type CustomerRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewCustomerRepository creates a new CustomerRepository
func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Create creates a new customer
func (r *CustomerRepository) Create(customer *models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO customers (id, organization_id, name, email, phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		customer.ID,
		customer.OrganizationID,
		customer.Name,
		customer.Email,
		customer.Phone,
		customer.CreatedAt,
		customer.UpdatedAt,
	)
	return err
}

// FindByEmailOrPhone looks up a customer within an organization matching
// either contact field. Empty fields never match.
func (r *CustomerRepository) FindByEmailOrPhone(organizationID, email, phone string) (*models.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT id, organization_id, name, email, phone, created_at, updated_at
		FROM customers
		WHERE organization_id = ?
		AND ((email != '' AND email = ?) OR (phone != '' AND phone = ?))
		LIMIT 1
	`

	customer := &models.Customer{}
	err := r.db.QueryRow(query, organizationID, email, phone).Scan(
		&customer.ID,
		&customer.OrganizationID,
		&customer.Name,
		&customer.Email,
		&customer.Phone,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return customer, nil
}

// CountByOrganizationID counts the customers belonging to an organization
func (r *CustomerRepository) CountByOrganizationID(organizationID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM customers WHERE organization_id = ?`, organizationID).Scan(&count)
	return count, err
}
