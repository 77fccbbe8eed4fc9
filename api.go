package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/asmitpant/tripsplit/currency"
	"github.com/asmitpant/tripsplit/eventlogger"
	"github.com/asmitpant/tripsplit/friend"
	"github.com/asmitpant/tripsplit/invite"
	"github.com/asmitpant/tripsplit/ledger"
	"github.com/asmitpant/tripsplit/middleware"
	"github.com/asmitpant/tripsplit/trip"
	"github.com/asmitpant/tripsplit/user"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// api holds the handlers behind the authenticated route group.
type api struct {
	users       user.Repository
	trips       trip.Repository
	friends     friend.Repository
	invitations invite.Repository
	events      *eventlogger.Worker
}

func (a *api) routes(r chi.Router) {
	r.Route("/trips", func(r chi.Router) {
		r.Get("/", a.listTrips)
		r.Post("/", a.createTrip)

		r.Route("/{tripID}", func(r chi.Router) {
			r.Get("/", a.getTrip)
			r.Delete("/", a.deleteTrip)

			r.Post("/members", a.addMember)
			r.Delete("/members/{member}", a.removeMember)

			r.Post("/guests", a.addGuest)
			r.Delete("/guests/{guestID}", a.removeGuest)

			r.Post("/expenses", a.addExpense)
			r.Delete("/expenses/{expenseID}", a.deleteExpense)

			r.Get("/balances", a.getBalances)
			r.Get("/settlements", a.getSettlements)

			r.Post("/invitations", a.sendInvitations)
		})
	})

	r.Route("/friends", func(r chi.Router) {
		r.Get("/", a.listFriends)
		r.Delete("/{friendshipID}", a.removeFriend)
		r.Get("/requests", a.listFriendRequests)
		r.Post("/requests", a.sendFriendRequest)
		r.Post("/requests/{requestID}/accept", a.respondToFriendRequest(friend.StatusAccepted))
		r.Post("/requests/{requestID}/decline", a.respondToFriendRequest(friend.StatusDeclined))
	})

	r.Route("/invitations", func(r chi.Router) {
		r.Get("/", a.listInvitations)
		r.Post("/{invitationID}/accept", a.acceptInvitation)
		r.Post("/{invitationID}/decline", a.declineInvitation)
	})
}

// currentUser loads the full account behind the session. Trip rosters
// key on email, so most handlers need it.
func (a *api) currentUser(w http.ResponseWriter, r *http.Request) *user.User {
	userID, _ := middleware.GetUserID(r.Context())
	u, err := a.users.GetByID(r.Context(), userID)
	if err != nil || u == nil {
		slog.Error("failed to fetch current user", "error", err, "user_id", userID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil
	}
	return u
}

// memberTrip loads the requested trip and verifies the caller belongs
// to it. Non-members get a 404 rather than confirmation the trip
// exists.
func (a *api) memberTrip(w http.ResponseWriter, r *http.Request, u *user.User) *trip.Trip {
	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		http.Error(w, "invalid trip id", http.StatusBadRequest)
		return nil
	}

	t, err := a.trips.GetByID(r.Context(), tripID)
	if err != nil {
		slog.Error("failed to fetch trip", "error", err, "trip_id", tripID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil
	}
	if t == nil || !t.HasMember(u.Email) {
		http.Error(w, "trip not found", http.StatusNotFound)
		return nil
	}

	return t
}

func (a *api) listTrips(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser(w, r)
	if u == nil {
		return
	}

	trips, err := a.trips.ListForMember(r.Context(), u.Email)
	if err != nil {
		slog.Error("failed to list trips", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if trips == nil {
		trips = []trip.Trip{}
	}

	writeJSON(w, http.StatusOK, trips)
}

func (a *api) createTrip(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser(w, r)
	if u == nil {
		return
	}

	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Members     []string `json:"members"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	t, err := trip.NewTrip(req.Name, req.Description, u.ID, u.Email, req.Members)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := a.trips.CreateNew(r.Context(), t); err != nil {
		slog.Error("failed to create trip", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	a.events.Log(eventlogger.NewEvent(
		eventlogger.WithType(eventlogger.TypeTripCreated),
		eventlogger.WithData(map[string]string{
			"trip_id": t.ID.String(),
			"name":    t.Name,
			"user_id": u.ID.String(),
		}),
	))

	writeJSON(w, http.StatusCreated, t)
}

func (a *api) getTrip(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser(w, r)
	if u == nil {
		return
	}
	t := a.memberTrip(w, r, u)
	if t == nil {
		return
	}

	writeJSON(w, http.StatusOK, t)
}

func (a *api) deleteTrip(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser(w, r)
	if u == nil {
		return
	}
	t := a.memberTrip(w, r, u)
	if t == nil {
		return
	}

	if t.CreatedBy != u.ID {
		http.Error(w, "only the trip creator can delete it", http.StatusForbidden)
		return
	}

	if err := a.trips.Delete(r.Context(), t.ID); err != nil {
		slog.Error("failed to delete trip", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	a.events.Log(eventlogger.NewEvent(
		eventlogger.WithType(eventlogger.TypeTripDeleted),
		eventlogger.WithData(map[string]string{
			"trip_id": t.ID.String(),
			"user_id": u.ID.String(),
		}),
	))

	w.WriteHeader(http.StatusNoContent)
}

func (a *api) addMember(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser(w, r)
	if u == nil {
		return
	}
	t := a.memberTrip(w, r, u)
	if t == nil {
		return
	}

	var req struct {
		Member string `json:"member"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Member == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := a.trips.AddMember(r.Context(), t.ID, req.Member); err != nil {
		slog.Error("failed to add member", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *api) removeMember(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser(w, r)
	if u == nil {
		return
	}
	t := a.memberTrip(w, r, u)
	if t == nil {
		return
	}

	member := chi.URLParam(r, "member")
	if err := a.trips.RemoveMember(r.Context(), t.ID, member); err != nil {
		if errors.Is(err, trip.ErrNotMember) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		slog.Error("failed to remove member", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *api) addGuest(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser(w, r)
	if u == nil {
		return
	}
	t := a.memberTrip(w, r, u)
	if t == nil {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	guest, err := trip.NewGuest(req.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := a.trips.AddGuest(r.Context(), t.ID, guest); err != nil {
		if errors.Is(err, trip.ErrDuplicateGuest) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		slog.Error("failed to add guest", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	a.events.Log(eventlogger.NewEvent(
		eventlogger.WithType(eventlogger.TypeGuestAdded),
		eventlogger.WithData(map[string]string{
			"trip_id":  t.ID.String(),
			"guest_id": guest.ID,
		}),
	))

	writeJSON(w, http.StatusCreated, guest)
}

func (a *api) removeGuest(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser(w, r)
	if u == nil {
		return
	}
	t := a.memberTrip(w, r, u)
	if t == nil {
		return
	}

	guestID := chi.URLParam(r, "guestID")
	if err := a.trips.RemoveGuest(r.Context(), t.ID, guestID); err != nil {
		if errors.Is(err, trip.ErrGuestInUse) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		slog.Error("failed to remove guest", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *api) addExpense(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser(w, r)
	if u == nil {
		return
	}
	t := a.memberTrip(w, r, u)
	if t == nil {
		return
	}

	var req struct {
		Description  string                `json:"description"`
		Amount       float64               `json:"amount"`
		PaidBy       []ledger.PaymentShare `json:"paid_by"`
		SplitType    ledger.SplitType      `json:"split_type"`
		Participants []ledger.Participant  `json:"participants"`
		Category     string                `json:"category"`
		Date         *time.Time            `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	date := time.Time{}
	if req.Date != nil {
		date = *req.Date
	}

	expense, err := ledger.NewExpense(t.ID, req.Description, req.Amount, req.PaidBy, req.SplitType, req.Participants, req.Category, date)
	if err != nil {
		var unbalanced *ledger.UnbalancedError
		if errors.As(err, &unbalanced) {
			http.Error(w, unbalanced.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := a.trips.AddExpense(r.Context(), *expense); err != nil {
		slog.Error("failed to save expense", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	a.events.Log(eventlogger.NewEvent(
		eventlogger.WithType(eventlogger.TypeExpenseAdded),
		eventlogger.WithData(map[string]string{
			"trip_id":    t.ID.String(),
			"expense_id": expense.ID.String(),
			"user_id":    u.ID.String(),
		}),
	))

	writeJSON(w, http.StatusCreated, expense)
}

func (a *api) deleteExpense(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser(w, r)
	if u == nil {
		return
	}
	t := a.memberTrip(w, r, u)
	if t == nil {
		return
	}

	expenseID, err := uuid.Parse(chi.URLParam(r, "expenseID"))
	if err != nil {
		http.Error(w, "invalid expense id", http.StatusBadRequest)
		return
	}

	if err := a.trips.DeleteExpense(r.Context(), t.ID, expenseID); err != nil {
		if errors.Is(err, trip.ErrExpenseNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		slog.Error("failed to delete expense", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	a.events.Log(eventlogger.NewEvent(
		eventlogger.WithType(eventlogger.TypeExpenseDeleted),
		eventlogger.WithData(map[string]string{
			"trip_id":    t.ID.String(),
			"expense_id": expenseID.String(),
			"user_id":    u.ID.String(),
		}),
	))

	w.WriteHeader(http.StatusNoContent)
}

// displayNames resolves roster identifiers for the display layer:
// registered members through their profile, guests through the trip's
// guest list.
func (a *api) displayNames(r *http.Request, t *trip.Trip, balances []ledger.MemberBalance) map[string]string {
	identifiers := make([]string, 0, len(balances))
	for _, b := range balances {
		identifiers = append(identifiers, b.Member)
	}

	names, err := a.users.DisplayNames(r.Context(), identifiers)
	if err != nil {
		slog.Warn("failed to resolve display names", "error", err)
		names = make(map[string]string, len(identifiers))
		for _, id := range identifiers {
			names[id] = id
		}
	}

	for _, g := range t.Guests {
		if g.Name != "" {
			names[g.ID] = g.Name
		}
	}

	return names
}

func (a *api) getBalances(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser(w, r)
	if u == nil {
		return
	}
	t := a.memberTrip(w, r, u)
	if t == nil {
		return
	}

	balances := t.Balances()

	writeJSON(w, http.StatusOK, map[string]any{
		"balances":      balances,
		"display_names": a.displayNames(r, t, balances),
	})
}

func (a *api) getSettlements(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser(w, r)
	if u == nil {
		return
	}
	t := a.memberTrip(w, r, u)
	if t == nil {
		return
	}

	balances := t.Balances()
	names := a.displayNames(r, t, balances)

	type settlementView struct {
		ledger.Settlement
		Display string `json:"display"`
	}

	settlements := ledger.ComputeSettlements(balances)
	views := make([]settlementView, 0, len(settlements))
	for _, s := range settlements {
		views = append(views, settlementView{
			Settlement: s,
			Display:    fmt.Sprintf("%s owes %s %s", names[s.From], names[s.To], currency.Format(s.Amount)),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"settlements":   views,
		"display_names": names,
		"currency":      currency.Code,
	})
}

func (a *api) listFriends(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	edges, err := a.friends.ListFriends(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list friends", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	type friendEntry struct {
		FriendshipID uuid.UUID  `json:"friendship_id"`
		Friend       *user.User `json:"friend"`
	}

	entries := make([]friendEntry, 0, len(edges))
	for _, edge := range edges {
		counterpart, err := a.users.GetByID(r.Context(), edge.Counterpart(userID))
		if err != nil {
			slog.Warn("failed to load friend profile", "error", err, "friendship_id", edge.ID)
			continue
		}
		entries = append(entries, friendEntry{FriendshipID: edge.ID, Friend: counterpart})
	}

	writeJSON(w, http.StatusOK, entries)
}

func (a *api) sendFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	target, err := a.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		slog.Error("failed to fetch user", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if target == nil {
		http.Error(w, "no user with that email", http.StatusNotFound)
		return
	}

	sent, err := a.friends.SendRequest(r.Context(), userID, target.ID)
	if err != nil {
		switch err {
		case friend.ErrSelfRequest, friend.ErrAlreadyFriends, friend.ErrRequestPending:
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			slog.Error("failed to send friend request", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	a.events.Log(eventlogger.NewEvent(
		eventlogger.WithType(eventlogger.TypeFriendRequested),
		eventlogger.WithData(map[string]string{
			"from": userID.String(),
			"to":   target.ID.String(),
		}),
	))

	writeJSON(w, http.StatusCreated, sent)
}

func (a *api) listFriendRequests(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	requests, err := a.friends.ListPending(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list friend requests", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if requests == nil {
		requests = []friend.Friend{}
	}

	writeJSON(w, http.StatusOK, requests)
}

func (a *api) respondToFriendRequest(status friend.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.GetUserID(r.Context())

		requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
		if err != nil {
			http.Error(w, "invalid request id", http.StatusBadRequest)
			return
		}

		if err := a.friends.Respond(r.Context(), requestID, userID, status); err != nil {
			if errors.Is(err, friend.ErrNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			slog.Error("failed to respond to friend request", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		a.events.Log(eventlogger.NewEvent(
			eventlogger.WithType(eventlogger.TypeFriendResponded),
			eventlogger.WithData(map[string]string{
				"request_id": requestID.String(),
				"user_id":    userID.String(),
				"status":     string(status),
			}),
		))

		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *api) removeFriend(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	friendshipID, err := uuid.Parse(chi.URLParam(r, "friendshipID"))
	if err != nil {
		http.Error(w, "invalid friendship id", http.StatusBadRequest)
		return
	}

	if err := a.friends.Remove(r.Context(), friendshipID, userID); err != nil {
		if errors.Is(err, friend.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		slog.Error("failed to remove friend", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *api) sendInvitations(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser(w, r)
	if u == nil {
		return
	}
	t := a.memberTrip(w, r, u)
	if t == nil {
		return
	}

	var req struct {
		Invitees []struct {
			UserID *uuid.UUID `json:"user_id"`
			Email  string     `json:"email"`
		} `json:"invitees"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Invitees) == 0 {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	created := make([]invite.Invitation, 0, len(req.Invitees))
	for _, invitee := range req.Invitees {
		inv, err := invite.New(t.ID, u.ID, invitee.UserID, invitee.Email, req.Message)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := a.invitations.Create(r.Context(), inv); err != nil {
			slog.Error("failed to create invitation", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		created = append(created, inv)

		a.events.Log(eventlogger.NewEvent(
			eventlogger.WithType(eventlogger.TypeInvitationSent),
			eventlogger.WithData(map[string]string{
				"trip_id":       t.ID.String(),
				"invitation_id": inv.ID.String(),
				"invited_by":    u.ID.String(),
			}),
		))
	}

	writeJSON(w, http.StatusCreated, created)
}

func (a *api) listInvitations(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser(w, r)
	if u == nil {
		return
	}

	invitations, err := a.invitations.ListPendingFor(r.Context(), u.ID, u.Email)
	if err != nil {
		slog.Error("failed to list invitations", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if invitations == nil {
		invitations = []invite.Invitation{}
	}

	writeJSON(w, http.StatusOK, invitations)
}

func (a *api) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser(w, r)
	if u == nil {
		return
	}

	invitationID, err := uuid.Parse(chi.URLParam(r, "invitationID"))
	if err != nil {
		http.Error(w, "invalid invitation id", http.StatusBadRequest)
		return
	}

	if err := a.invitations.Accept(r.Context(), invitationID, u.ID, u.Email); err != nil {
		switch {
		case errors.Is(err, invite.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, invite.ErrExpired):
			http.Error(w, err.Error(), http.StatusGone)
		default:
			slog.Error("failed to accept invitation", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	a.events.Log(eventlogger.NewEvent(
		eventlogger.WithType(eventlogger.TypeInvitationAccepted),
		eventlogger.WithData(map[string]string{
			"invitation_id": invitationID.String(),
			"user_id":       u.ID.String(),
		}),
	))

	w.WriteHeader(http.StatusNoContent)
}

func (a *api) declineInvitation(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser(w, r)
	if u == nil {
		return
	}

	invitationID, err := uuid.Parse(chi.URLParam(r, "invitationID"))
	if err != nil {
		http.Error(w, "invalid invitation id", http.StatusBadRequest)
		return
	}

	if err := a.invitations.Decline(r.Context(), invitationID, u.ID, u.Email); err != nil {
		if errors.Is(err, invite.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		slog.Error("failed to decline invitation", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
