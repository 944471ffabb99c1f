package postgres

// Store groups the PostgreSQL repositories over one connection pool.
type Store struct {
	conn *Connection
}

// NewStore wraps an open connection.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

// Connection returns the underlying pool wrapper.
func (s *Store) Connection() *Connection {
	return s.conn
}

// Progress returns the lesson progress repository.
func (s *Store) Progress() *ProgressRepository {
	return &ProgressRepository{conn: s.conn}
}

// Purchases returns the purchase ledger repository.
func (s *Store) Purchases() *PurchaseRepository {
	return &PurchaseRepository{conn: s.conn}
}

// Accounts returns the user account repository.
func (s *Store) Accounts() *AccountRepository {
	return &AccountRepository{conn: s.conn}
}

// Catalog returns the course catalog repository.
func (s *Store) Catalog() *CatalogRepository {
	return &CatalogRepository{conn: s.conn}
}
