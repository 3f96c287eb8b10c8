package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stockdash/internal/domain"
	"stockdash/internal/gateway"
	"stockdash/internal/normalize"
	"stockdash/internal/retry"
)

type ClientInput struct {
	Name  string  `json:"name"`
	Phone *string `json:"phone,omitempty"`
	Email *string `json:"email,omitempty"`
}

// CreateOrUpdateClient finds a client by exact name, updating its phone when a
// different one is given, or creates it. An empty name yields a nil id.
func (s *Service) CreateOrUpdateClient(ctx context.Context, name, phone string) (*string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	client, err := s.resolveClient(ctx, name, normalizeNullable(&phone))
	if client == nil {
		return nil, err
	}
	return &client.ID, err
}

// resolveClient returns a non-nil client together with an error when the
// client was found but its phone could not be updated.
func (s *Service) resolveClient(ctx context.Context, name string, phone *string) (*domain.Client, error) {
	existing, err := s.findClientByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if phone == nil || (existing.Phone != nil && *existing.Phone == *phone) {
			return existing, nil
		}
		patch := gateway.Row{normalize.ColPhone: *phone}
		if err := s.gw.Update(ctx, gateway.TableClients, patch, gateway.Eq(normalize.ColID, existing.ID)); err != nil {
			return existing, fmt.Errorf("update client phone: %w", err)
		}
		updated := *existing
		updated.Phone = phone
		s.mu.Lock()
		s.st.upsertClient(updated)
		s.mu.Unlock()
		return &updated, nil
	}

	row, err := s.gw.Insert(ctx, gateway.TableClients, normalize.ClientRecord(name, phone, nil))
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	created := normalize.Client(row)
	s.mu.Lock()
	s.st.upsertClient(created)
	s.mu.Unlock()
	return &created, nil
}

// findClientByName asks the backend, since another session may have created the
// client after the last load.
func (s *Service) findClientByName(ctx context.Context, name string) (*domain.Client, error) {
	rows, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]gateway.Row, error) {
		return s.gw.Select(ctx, gateway.TableClients, gateway.Query{
			Columns: normalize.ClientColumns,
			Filters: []gateway.Filter{gateway.Eq(normalize.ColName, name)},
			Range:   &gateway.Range{From: 0, To: 0},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("find client %q: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	client := normalize.Client(rows[0])
	return &client, nil
}

// CreateClient adds a client explicitly. Names are unique.
func (s *Service) CreateClient(ctx context.Context, in ClientInput) (domain.Client, error) {
	if s.closed.Load() {
		return domain.Client{}, ErrClosed
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Client{}, invalid("client name is required")
	}

	s.mu.RLock()
	_, dup := s.st.clientByName(name)
	s.mu.RUnlock()
	if !dup {
		existing, err := s.findClientByName(ctx, name)
		if err != nil {
			return domain.Client{}, s.fail("create client", "Could not check existing clients.", err)
		}
		dup = existing != nil
	}
	if dup {
		return domain.Client{}, ErrDuplicateClient
	}

	row, err := s.gw.Insert(ctx, gateway.TableClients, normalize.ClientRecord(name, normalizeNullable(in.Phone), normalizeNullable(in.Email)))
	if err != nil {
		return domain.Client{}, s.fail("create client", "Could not create the client.", err)
	}
	client := normalize.Client(row)
	s.mu.Lock()
	s.st.upsertClient(client)
	s.mu.Unlock()
	return client, nil
}

// UpdateClientContact replaces a client's phone and email. Blank values clear them.
func (s *Service) UpdateClientContact(ctx context.Context, id string, phone, email *string) (domain.Client, error) {
	if s.closed.Load() {
		return domain.Client{}, ErrClosed
	}
	s.mu.RLock()
	var (
		current domain.Client
		found   bool
	)
	for _, c := range s.st.clients {
		if c.ID == id {
			current, found = c, true
			break
		}
	}
	s.mu.RUnlock()
	if !found {
		return domain.Client{}, fmt.Errorf("client %s: %w", id, ErrNotFound)
	}

	phone, email = normalizeNullable(phone), normalizeNullable(email)
	patch := gateway.Row{
		normalize.ColPhone: nullableValue(phone),
		normalize.ColEmail: nullableValue(email),
	}
	if err := s.gw.Update(ctx, gateway.TableClients, patch, gateway.Eq(normalize.ColID, id)); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return domain.Client{}, fmt.Errorf("client %s: %w", id, ErrNotFound)
		}
		return domain.Client{}, s.fail("update client", "Could not update the client.", err)
	}
	current.Phone, current.Email = phone, email
	s.mu.Lock()
	s.st.upsertClient(current)
	s.mu.Unlock()
	return current, nil
}

func nullableValue(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
