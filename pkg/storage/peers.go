package storage

import (
	"fmt"

	"github.com/ZentaChain/zentalk-p2p/pkg/p2p"
)

// SavePeers replaces the stored registry snapshot with peers, keeping their order
func (s *Store) SavePeers(peers []p2p.Peer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return ErrClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM peers"); err != nil {
		return fmt.Errorf("failed to clear peers: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO peers (id, address, port, position) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range peers {
		if _, err := stmt.Exec(p.ID, p.Address, p.Port, i); err != nil {
			return fmt.Errorf("failed to save peer %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// LoadPeers returns the stored snapshot in the order it was saved
func (s *Store) LoadPeers() ([]p2p.Peer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.Query("SELECT id, address, port FROM peers ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query peers: %w", err)
	}
	defer rows.Close()

	var peers []p2p.Peer
	for rows.Next() {
		var p p2p.Peer
		if err := rows.Scan(&p.ID, &p.Address, &p.Port); err != nil {
			return nil, fmt.Errorf("failed to scan peer: %w", err)
		}
		peers = append(peers, p)
	}

	return peers, rows.Err()
}
