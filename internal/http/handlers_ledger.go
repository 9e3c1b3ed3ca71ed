package http

import (
	"context"
	"errors"
	"net/http"

	"finboard/internal/core"
	applog "finboard/internal/log"
	"finboard/internal/ports"
)

// resource serves list, create, update and delete of one user-owned entity on a
// single path. PUT and DELETE take the id as a query parameter.
type resource[T any] struct {
	s      *Server
	entity string
	list   func(r *http.Request, userID string) ([]T, error)
	create func(ctx context.Context, v T) (T, error)
	update func(ctx context.Context, v T) (T, error)
	remove func(ctx context.Context, userID, id string) error
	// own stamps the caller and, for updates, the id onto a decoded body.
	own func(v *T, userID, id string)
	// encode converts an entity for the response. Nil writes the entity as is.
	encode func(enc encoder, v T) any
	// rounded resources load the user's rounding rule before encoding.
	rounded bool
	idOf    func(v T) string
}

func (rs resource[T]) serve(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rs.handleList(w, r)
	case http.MethodPost:
		rs.handleWrite(w, r, "")
	case http.MethodPut:
		id, err := requireID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		rs.handleWrite(w, r, id)
	case http.MethodDelete:
		rs.handleDelete(w, r)
	default:
		MethodNotAllowedError("GET, POST, PUT, DELETE").Write(w)
	}
}

func (rs resource[T]) encoderFor(ctx context.Context, userID string) (encoder, error) {
	if !rs.rounded {
		return encoder{}, nil
	}
	rule, err := rs.s.roundingRule(ctx, userID)
	return encoder{rule: rule}, err
}

func (rs resource[T]) render(enc encoder, v T) any {
	if rs.encode == nil {
		return v
	}
	return rs.encode(enc, v)
}

func (rs resource[T]) handleList(w http.ResponseWriter, r *http.Request) {
	userID := rs.s.userID(r)
	items, err := rs.list(r, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	enc, err := rs.encoderFor(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, rs.render(enc, item))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (rs resource[T]) handleWrite(w http.ResponseWriter, r *http.Request, id string) {
	var v T
	if err := decodeJSON(w, r, &v); err != nil {
		writeError(w, r, err)
		return
	}
	userID := rs.s.userID(r)
	rs.own(&v, userID, id)

	op, status := applog.OpCreate, http.StatusCreated
	write := rs.create
	if id != "" {
		op, status = applog.OpUpdate, http.StatusOK
		write = rs.update
	}
	saved, err := write(r.Context(), v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogEntityWrite(r.Context(), rs.entity, op, userID, rs.idOf(saved))

	enc, err := rs.encoderFor(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(status).Body(rs.render(enc, saved)).Write(w)
}

func (rs resource[T]) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := requireID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID := rs.s.userID(r)
	if err := rs.remove(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogEntityWrite(r.Context(), rs.entity, applog.OpDelete, userID, id)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// roundingRule returns the user's rule, the default when no settings exist yet.
func (s *Server) roundingRule(ctx context.Context, userID string) (core.RoundingRule, error) {
	st, err := s.svc.Ledger.Settings(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.RoundBankers, nil
	}
	if err != nil {
		return "", err
	}
	return st.RoundingRule, nil
}

func (s *Server) accountsResource() resource[core.Account] {
	l := s.svc.Ledger
	return resource[core.Account]{
		s:      s,
		entity: "account",
		list: func(r *http.Request, userID string) ([]core.Account, error) {
			return l.Accounts(r.Context(), userID)
		},
		create: l.CreateAccount,
		update: l.UpdateAccount,
		remove: l.DeleteAccount,
		own:    func(a *core.Account, userID, id string) { a.UserID, a.ID = userID, id },
		idOf:   func(a core.Account) string { return a.ID },
	}
}

func (s *Server) categoriesResource() resource[core.Category] {
	l := s.svc.Ledger
	return resource[core.Category]{
		s:      s,
		entity: "category",
		list: func(r *http.Request, userID string) ([]core.Category, error) {
			return l.Categories(r.Context(), userID)
		},
		create: l.CreateCategory,
		update: l.UpdateCategory,
		remove: l.DeleteCategory,
		own:    func(c *core.Category, userID, id string) { c.UserID, c.ID = userID, id },
		idOf:   func(c core.Category) string { return c.ID },
	}
}

// transactionFilter reads accountId, type, from and to.
func transactionFilter(r *http.Request) (ports.TransactionFilter, error) {
	query := r.URL.Query()
	f := ports.TransactionFilter{
		AccountID: sanitizeInput(query.Get("accountId")),
		Type:      core.TransactionType(sanitizeInput(query.Get("type"))),
	}
	if f.Type != "" {
		if err := f.Type.Validate(); err != nil {
			return f, err
		}
	}
	var err error
	if f.From, err = parseDateParam(query, "from"); err != nil {
		return f, err
	}
	if f.To, err = parseDateParam(query, "to"); err != nil {
		return f, err
	}
	return f, nil
}

func (s *Server) transactionsResource() resource[core.Transaction] {
	l := s.svc.Ledger
	return resource[core.Transaction]{
		s:      s,
		entity: "transaction",
		list: func(r *http.Request, userID string) ([]core.Transaction, error) {
			f, err := transactionFilter(r)
			if err != nil {
				return nil, err
			}
			return l.Transactions(r.Context(), userID, f)
		},
		create:  l.CreateTransaction,
		update:  l.UpdateTransaction,
		remove:  l.DeleteTransaction,
		own:     func(tx *core.Transaction, userID, id string) { tx.UserID, tx.ID = userID, id },
		encode:  func(enc encoder, tx core.Transaction) any { return enc.transaction(tx) },
		rounded: true,
		idOf:    func(tx core.Transaction) string { return tx.ID },
	}
}

func (s *Server) holdingsResource() resource[core.Holding] {
	l := s.svc.Ledger
	return resource[core.Holding]{
		s:      s,
		entity: "holding",
		list: func(r *http.Request, userID string) ([]core.Holding, error) {
			return l.Holdings(r.Context(), userID)
		},
		create: l.CreateHolding,
		update: l.UpdateHolding,
		remove: l.DeleteHolding,
		own:    func(h *core.Holding, userID, id string) { h.UserID, h.ID = userID, id },
		encode: func(_ encoder, h core.Holding) any { return holdingToDTO(h) },
		idOf:   func(h core.Holding) string { return h.ID },
	}
}

func (s *Server) tasksResource() resource[core.Task] {
	l := s.svc.Ledger
	return resource[core.Task]{
		s:      s,
		entity: "task",
		list: func(r *http.Request, userID string) ([]core.Task, error) {
			return l.Tasks(r.Context(), userID)
		},
		create: l.CreateTask,
		update: l.UpdateTask,
		remove: l.DeleteTask,
		own:    func(t *core.Task, userID, id string) { t.UserID, t.ID = userID, id },
		idOf:   func(t core.Task) string { return t.ID },
	}
}

// handleSettings answers GET and PUT /api/settings.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	switch r.Method {
	case http.MethodGet:
		st, err := s.svc.Ledger.Settings(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		NewJSONResponse().Body(st).Write(w)
	case http.MethodPut:
		var st core.Setting
		if err := decodeJSON(w, r, &st); err != nil {
			writeError(w, r, err)
			return
		}
		st.UserID = userID
		saved, err := s.svc.Ledger.PutSettings(r.Context(), st)
		if err != nil {
			writeError(w, r, err)
			return
		}
		applog.NewStructuredLogger(applog.FromContext(r.Context())).LogEntityWrite(r.Context(), "settings", applog.OpUpdate, userID, userID)
		NewJSONResponse().Body(saved).Write(w)
	default:
		MethodNotAllowedError("GET, PUT").Write(w)
	}
}
