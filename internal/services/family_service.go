package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dhishan/family-expense-tracker/internal/core"
	"github.com/dhishan/family-expense-tracker/internal/storage"
)

// FamilyService manages families, membership and family settings.
type FamilyService struct {
	store         storage.Store
	users         *UserService
	notifications *NotificationService
	clock         Clock
	inviteCode    func() (string, error)
}

func NewFamilyService(store storage.Store, users *UserService, notifications *NotificationService, clock Clock) *FamilyService {
	return &FamilyService{
		store:         store,
		users:         users,
		notifications: notifications,
		clock:         clock,
		inviteCode:    newInviteCode,
	}
}

// newInviteCode returns 8 random bytes, base64url encoded.
func newInviteCode() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create makes a new family with user as its first member.
func (s *FamilyService) Create(ctx context.Context, user core.User, in core.FamilyInput) (core.FamilyWithMembers, error) {
	if user.HasFamily() {
		return core.FamilyWithMembers{}, core.ErrAlreadyInFamily
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return core.FamilyWithMembers{}, core.ErrEmptyName
	}
	if len(name) > 100 {
		return core.FamilyWithMembers{}, core.Invalid("name too long (max 100 characters)")
	}

	categories := in.Categories
	if len(categories) == 0 {
		categories = core.DefaultCategories()
	}
	labels := map[string]string{core.BeneficiaryFamily: core.BeneficiaryFamilyLabel}
	for k, v := range in.BeneficiaryLabels {
		labels[k] = v
	}
	labels[user.ID] = user.DisplayName

	code, err := s.inviteCode()
	if err != nil {
		return core.FamilyWithMembers{}, err
	}
	f := core.Family{
		Name:              name,
		CreatedAt:         s.clock.Now(),
		CreatedBy:         user.ID,
		InviteCode:        code,
		Categories:        categories,
		BeneficiaryLabels: labels,
	}
	f.ID, err = save(ctx, s.store, storage.Families, "", "family", f)
	if err != nil {
		return core.FamilyWithMembers{}, err
	}
	if err := s.users.SetFamily(ctx, user.ID, &f.ID); err != nil {
		return core.FamilyWithMembers{}, err
	}
	slog.InfoContext(ctx, "Family created", "family_id", f.ID, "user_id", user.ID)

	return core.FamilyWithMembers{Family: f, Members: []core.FamilyMember{member(user)}}, nil
}

// Family loads a family without an access check.
func (s *FamilyService) Family(ctx context.Context, familyID string) (core.Family, error) {
	var f core.Family
	if err := load(ctx, s.store, storage.Families, familyID, "family", &f); err != nil {
		return core.Family{}, err
	}
	return f, nil
}

// Get returns the user's family with its members. Members missing from the
// beneficiary labels are added to them.
func (s *FamilyService) Get(ctx context.Context, user core.User, familyID string) (core.FamilyWithMembers, error) {
	if err := requireMember(user, familyID); err != nil {
		return core.FamilyWithMembers{}, err
	}
	f, err := s.Family(ctx, familyID)
	if err != nil {
		return core.FamilyWithMembers{}, err
	}
	users, err := s.users.Members(ctx, familyID)
	if err != nil {
		return core.FamilyWithMembers{}, err
	}

	if f.BeneficiaryLabels == nil {
		f.BeneficiaryLabels = map[string]string{}
	}
	missing := false
	members := make([]core.FamilyMember, 0, len(users))
	for _, u := range users {
		members = append(members, member(u))
		if _, ok := f.BeneficiaryLabels[u.ID]; !ok {
			f.BeneficiaryLabels[u.ID] = u.DisplayName
			missing = true
		}
	}
	if missing {
		if err := s.store.Update(ctx, storage.Families, f.ID, storage.Fields{"beneficiary_labels": f.BeneficiaryLabels}); err != nil {
			return core.FamilyWithMembers{}, core.Upstream("update beneficiary labels", err)
		}
	}
	return core.FamilyWithMembers{Family: f, Members: members}, nil
}

// Members lists the members of the user's family.
func (s *FamilyService) Members(ctx context.Context, user core.User, familyID string) ([]core.FamilyMember, error) {
	if err := requireMember(user, familyID); err != nil {
		return nil, err
	}
	users, err := s.users.Members(ctx, familyID)
	if err != nil {
		return nil, err
	}
	members := make([]core.FamilyMember, len(users))
	for i, u := range users {
		members[i] = member(u)
	}
	return members, nil
}

// Join adds user to familyID when code matches the family's invite code.
func (s *FamilyService) Join(ctx context.Context, user core.User, familyID, code string) (core.FamilyWithMembers, error) {
	if user.HasFamily() {
		return core.FamilyWithMembers{}, core.ErrAlreadyInFamily
	}
	f, err := s.Family(ctx, familyID)
	if err != nil {
		return core.FamilyWithMembers{}, err
	}
	if f.InviteCode != code {
		return core.FamilyWithMembers{}, core.Invalid("invalid invite code")
	}
	return s.join(ctx, user, f)
}

// JoinByCode looks the family up by invite code.
func (s *FamilyService) JoinByCode(ctx context.Context, user core.User, code string) (core.FamilyWithMembers, error) {
	if user.HasFamily() {
		return core.FamilyWithMembers{}, core.ErrAlreadyInFamily
	}
	if strings.TrimSpace(code) == "" {
		return core.FamilyWithMembers{}, core.Invalid("invite code is required")
	}
	families, err := queryAll[core.Family](ctx, s.store,
		storage.From(storage.Families).Where("invite_code", storage.Eq, code).WithLimit(1), "families")
	if err != nil {
		return core.FamilyWithMembers{}, err
	}
	if len(families) == 0 {
		return core.FamilyWithMembers{}, core.NotFound("invite code")
	}
	return s.join(ctx, user, families[0])
}

func (s *FamilyService) join(ctx context.Context, user core.User, f core.Family) (core.FamilyWithMembers, error) {
	existing, err := s.users.MemberIDs(ctx, f.ID)
	if err != nil {
		return core.FamilyWithMembers{}, err
	}
	if err := s.users.SetFamily(ctx, user.ID, &f.ID); err != nil {
		return core.FamilyWithMembers{}, err
	}
	if _, ok := f.BeneficiaryLabels[user.ID]; !ok {
		labels := map[string]string{}
		for k, v := range f.BeneficiaryLabels {
			labels[k] = v
		}
		labels[user.ID] = user.DisplayName
		if err := s.store.Update(ctx, storage.Families, f.ID, storage.Fields{"beneficiary_labels": labels}); err != nil {
			return core.FamilyWithMembers{}, core.Upstream("update beneficiary labels", err)
		}
	}
	slog.InfoContext(ctx, "User joined family", "family_id", f.ID, "user_id", user.ID)

	s.notifyJoined(ctx, f, user, existing)

	user.FamilyID = &f.ID
	return s.Get(ctx, user, f.ID)
}

// notifyJoined tells existing members about the new one. Failures are logged only.
func (s *FamilyService) notifyJoined(ctx context.Context, f core.Family, user core.User, recipients []string) {
	for _, id := range recipients {
		if id == user.ID {
			continue
		}
		_, err := s.notifications.Create(ctx, core.Notification{
			FamilyID: f.ID,
			UserID:   id,
			Type:     core.NotificationFamilyJoined,
			Title:    "New family member",
			Message:  fmt.Sprintf("%s joined %s", user.DisplayName, f.Name),
		})
		if err != nil {
			slog.ErrorContext(ctx, "Failed to notify family member",
				"family_id", f.ID, "recipient", id, "error", err)
		}
	}
}

// Leave removes user from familyID.
func (s *FamilyService) Leave(ctx context.Context, user core.User, familyID string) error {
	if err := requireMember(user, familyID); err != nil {
		return err
	}
	if err := s.users.SetFamily(ctx, user.ID, nil); err != nil {
		return err
	}
	slog.InfoContext(ctx, "User left family", "family_id", familyID, "user_id", user.ID)
	return nil
}

// RegenerateInvite replaces the family invite code and returns the new one.
func (s *FamilyService) RegenerateInvite(ctx context.Context, user core.User, familyID string) (string, error) {
	if err := requireMember(user, familyID); err != nil {
		return "", err
	}
	code, err := s.inviteCode()
	if err != nil {
		return "", err
	}
	err = s.store.Update(ctx, storage.Families, familyID, storage.Fields{"invite_code": code})
	if errors.Is(err, storage.ErrNotFound) {
		return "", core.NotFound("family")
	}
	if err != nil {
		return "", core.Upstream("update invite code", err)
	}
	return code, nil
}

// UpdateSettings replaces categories and/or beneficiary labels.
func (s *FamilyService) UpdateSettings(ctx context.Context, user core.User, familyID string, in core.FamilySettingsUpdate) (core.Family, error) {
	if err := requireMember(user, familyID); err != nil {
		return core.Family{}, err
	}
	update := storage.Fields{}
	if in.Categories != nil {
		if len(*in.Categories) == 0 {
			return core.Family{}, core.Invalid("categories cannot be empty")
		}
		update["categories"] = *in.Categories
	}
	if in.BeneficiaryLabels != nil {
		if _, ok := in.BeneficiaryLabels[core.BeneficiaryFamily]; !ok {
			return core.Family{}, core.ErrMissingFamilyLabel
		}
		update["beneficiary_labels"] = in.BeneficiaryLabels
	}
	if len(update) == 0 {
		return core.Family{}, core.Invalid("no settings to update")
	}

	err := s.store.Update(ctx, storage.Families, familyID, update)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Family{}, core.NotFound("family")
	}
	if err != nil {
		return core.Family{}, core.Upstream("update family settings", err)
	}
	return s.Family(ctx, familyID)
}

func requireMember(user core.User, familyID string) error {
	if !user.HasFamily() || *user.FamilyID != familyID {
		return core.Forbidden("not a member of this family")
	}
	return nil
}

func member(u core.User) core.FamilyMember {
	return core.FamilyMember{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, PhotoURL: u.PhotoURL}
}
