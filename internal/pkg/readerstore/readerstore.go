// Package readerstore persists which provisioned gateway reader serves
// which POS register, keyed by the register's origin domain and ID.
package readerstore

import (
	"database/sql"
	"errors"
)

// Register maps one POS register to the reader provisioned for it.
type Register struct {
	ReaderID      string // gateway reader ID (rdr_...)
	Location      string // gateway location the reader was provisioned under
	Origin        string // POS origin domain
	POSRegisterID string
}

// Store wraps the database the mappings live in.
type Store struct {
	Db *sql.DB
}

// NewStore binds a Store to a database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{
		Db: db,
	}
}

// NewRegister returns a pointer to a register mapping.
func NewRegister(readerID string, location string, origin string, posRegisterID string) *Register {
	return &Register{
		ReaderID:      readerID,
		Location:      location,
		Origin:        origin,
		POSRegisterID: posRegisterID,
	}
}

// Save will save the register mapping to the database
func (s Store) Save(user string, register *Register) (bool, error) {
	query := `INSERT INTO
		flux_reader_map
		(
			reader_id,
			location_id,
			origin_domain,
			pos_register_id,
			created_by
		) VALUES (?, ?, ?, ?, ?) `

	stmt, err := s.Db.Prepare(query)

	if err != nil {
		return false, err
	}

	defer stmt.Close()

	_, err = stmt.Exec(
		newNullString(register.ReaderID),
		newNullString(register.Location),
		newNullString(register.Origin),
		newNullString(register.POSRegisterID),
		newNullString(user),
	)

	if err != nil {
		return false, err
	}

	return true, nil
}

// GetRegister will return the mapping for the domain & register_id combo
func (s Store) GetRegister(originDomain string, posRegisterID string) (*Register, error) {
	var register = new(Register)
	query := `SELECT
			 reader_id,
			 location_id,
			 origin_domain,
			 pos_register_id
			FROM
				flux_reader_map
			WHERE
				origin_domain = ?
			AND
				pos_register_id = ?`

	rows, err := s.Db.Query(query, originDomain, posRegisterID)
	if rows == nil {
		return register, errors.New("Nothing returned from register lookup. Has the table been created ?")
	}
	defer rows.Close()

	noRows := 0

	for rows.Next() {
		noRows++
		err = rows.Scan(
			&register.ReaderID,
			&register.Location,
			&register.Origin,
			&register.POSRegisterID,
		)

	}
	if err != nil {
		return register, err
	}

	if noRows < 1 {
		return nil, errors.New("Unable to find a matching reader for this register")
	}

	return register, err
}

func newNullString(s string) sql.NullString {
	if len(s) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{
		String: s,
		Valid:  true,
	}
}
