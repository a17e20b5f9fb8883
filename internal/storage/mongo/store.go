// Package mongo provides a MongoDB-backed implementation of storage.Store.
//
// Each group is one document holding its members and its ledger, so a
// ledger update is a single-document write. Expenses, users, placeholders and
// settlements live in their own collections. There are no multi-document
// transactions; deleting a group removes its expenses and settlements
// afterwards in separate writes.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/google/uuid"

	"github.com/mmynk/contri/internal/id"
	"github.com/mmynk/contri/internal/models"
	"github.com/mmynk/contri/internal/storage"
)

// Collection name constants.
const (
	colGroups       = "groups"
	colExpenses     = "expenses"
	colUsers        = "users"
	colPlaceholders = "placeholders"
	colSettlements  = "settlements"
)

// compile-time interface check
var _ storage.Store = (*Store)(nil)

// Store implements storage.Store using MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a client for uri, verifies connectivity and ensures indexes.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("contri/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("contri/mongo: ping: %w", err)
	}

	s := New(client, database)
	if err := s.Migrate(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// New wraps an existing client.
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Migrate creates indexes for all collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, idx := range migrationIndexes() {
		if len(idx) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("contri/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ==================== Group Store ====================

func (s *Store) CreateGroup(ctx context.Context, g *models.Group) error {
	if g.ID == "" {
		g.ID = id.NewGroupID()
	}
	now := time.Now().Unix()
	if g.CreatedAt == 0 {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	if _, err := s.db.Collection(colGroups).InsertOne(ctx, toGroupModel(g)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("group %s: %w", g.ID, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("contri/mongo: create group: %w", err)
	}
	return nil
}

func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	var m groupModel
	err := s.db.Collection(colGroups).FindOne(ctx, bson.M{"_id": groupID}).Decode(&m)
	if err != nil {
		return nil, notFound(err, "group", groupID)
	}
	return fromGroupModel(&m)
}

func (s *Store) UpdateGroup(ctx context.Context, g *models.Group) error {
	g.UpdatedAt = time.Now().Unix()
	m := toGroupModel(g)

	res, err := s.db.Collection(colGroups).UpdateOne(ctx,
		bson.M{"_id": g.ID},
		bson.M{"$set": bson.M{
			"name":       m.Name,
			"members":    m.Members,
			"debts":      m.Debts,
			"updated_at": m.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("contri/mongo: update group: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("group %s: %w", g.ID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteGroup(ctx context.Context, groupID string) error {
	res, err := s.db.Collection(colGroups).DeleteOne(ctx, bson.M{"_id": groupID})
	if err != nil {
		return fmt.Errorf("contri/mongo: delete group: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}

	if _, err := s.db.Collection(colExpenses).DeleteMany(ctx, bson.M{"group_id": groupID}); err != nil {
		return fmt.Errorf("contri/mongo: delete group expenses: %w", err)
	}
	if _, err := s.db.Collection(colSettlements).DeleteMany(ctx, bson.M{"group_id": groupID}); err != nil {
		return fmt.Errorf("contri/mongo: delete group settlements: %w", err)
	}
	return nil
}

func (s *Store) ListGroupsByMember(ctx context.Context, memberID string) ([]*models.Group, error) {
	cursor, err := s.db.Collection(colGroups).Find(ctx,
		bson.M{"members.id": memberID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("contri/mongo: list groups by member: %w", err)
	}

	var ms []groupModel
	if err := cursor.All(ctx, &ms); err != nil {
		return nil, fmt.Errorf("contri/mongo: decode groups: %w", err)
	}

	groups := make([]*models.Group, len(ms))
	for i := range ms {
		g, err := fromGroupModel(&ms[i])
		if err != nil {
			return nil, err
		}
		groups[i] = g
	}
	return groups, nil
}

func (s *Store) ListMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return g.Members, nil
}

func (s *Store) IsMember(ctx context.Context, groupID, memberID string) (bool, error) {
	n, err := s.db.Collection(colGroups).CountDocuments(ctx,
		bson.M{"_id": groupID, "members.id": memberID},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("contri/mongo: check membership: %w", err)
	}
	return n > 0, nil
}

// ==================== Expense Store ====================

func (s *Store) CreateExpense(ctx context.Context, e *models.Expense) error {
	if e.ID == "" {
		e.ID = id.NewExpenseID()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}

	if _, err := s.db.Collection(colExpenses).InsertOne(ctx, toExpenseModel(e)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("expense %s: %w", e.ID, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("contri/mongo: create expense: %w", err)
	}
	return nil
}

func (s *Store) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	var m expenseModel
	err := s.db.Collection(colExpenses).FindOne(ctx, bson.M{"_id": expenseID}).Decode(&m)
	if err != nil {
		return nil, notFound(err, "expense", expenseID)
	}
	return fromExpenseModel(&m), nil
}

func (s *Store) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	cursor, err := s.db.Collection(colExpenses).Find(ctx,
		bson.M{"group_id": groupID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("contri/mongo: list expenses: %w", err)
	}

	var ms []expenseModel
	if err := cursor.All(ctx, &ms); err != nil {
		return nil, fmt.Errorf("contri/mongo: decode expenses: %w", err)
	}

	expenses := make([]*models.Expense, len(ms))
	for i := range ms {
		expenses[i] = fromExpenseModel(&ms[i])
	}
	return expenses, nil
}

func (s *Store) DeleteExpense(ctx context.Context, expenseID string) error {
	res, err := s.db.Collection(colExpenses).DeleteOne(ctx, bson.M{"_id": expenseID})
	if err != nil {
		return fmt.Errorf("contri/mongo: delete expense: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	return nil
}

// ==================== User Store ====================

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = id.NewUserID()
	}
	now := time.Now().Unix()
	if u.CreatedAt == 0 {
		u.CreatedAt = now
	}
	if u.UpdatedAt == 0 {
		u.UpdatedAt = now
	}

	if _, err := s.db.Collection(colUsers).InsertOne(ctx, toUserModel(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user %s: %w", u.Email, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("contri/mongo: create user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var m userModel
	err := s.db.Collection(colUsers).FindOne(ctx, bson.M{"email": email}).Decode(&m)
	if err != nil {
		return nil, notFound(err, "user", email)
	}
	return fromUserModel(&m), nil
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var m userModel
	err := s.db.Collection(colUsers).FindOne(ctx, bson.M{"_id": userID}).Decode(&m)
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	return fromUserModel(&m), nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	users := make(map[string]*models.User)
	if len(ids) == 0 {
		return users, nil
	}

	cursor, err := s.db.Collection(colUsers).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("contri/mongo: get users by IDs: %w", err)
	}
	var ms []userModel
	if err := cursor.All(ctx, &ms); err != nil {
		return nil, fmt.Errorf("contri/mongo: decode users: %w", err)
	}
	for i := range ms {
		u := fromUserModel(&ms[i])
		users[u.ID] = u
	}
	return users, nil
}

func (s *Store) CreatePlaceholder(ctx context.Context, p *models.PlaceholderUser) error {
	if p.ID == "" {
		p.ID = id.NewPlaceholderID()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}
	if _, err := s.db.Collection(colPlaceholders).InsertOne(ctx, toPlaceholderModel(p)); err != nil {
		return fmt.Errorf("contri/mongo: create placeholder: %w", err)
	}
	return nil
}

func (s *Store) ListPlaceholdersByPhone(ctx context.Context, phone string) ([]*models.PlaceholderUser, error) {
	cursor, err := s.db.Collection(colPlaceholders).Find(ctx,
		bson.M{"phone": phone},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("contri/mongo: list placeholders: %w", err)
	}
	var ms []placeholderModel
	if err := cursor.All(ctx, &ms); err != nil {
		return nil, fmt.Errorf("contri/mongo: decode placeholders: %w", err)
	}
	out := make([]*models.PlaceholderUser, len(ms))
	for i := range ms {
		out[i] = fromPlaceholderModel(&ms[i])
	}
	return out, nil
}

func (s *Store) DeletePlaceholder(ctx context.Context, placeholderID string) error {
	res, err := s.db.Collection(colPlaceholders).DeleteOne(ctx, bson.M{"_id": placeholderID})
	if err != nil {
		return fmt.Errorf("contri/mongo: delete placeholder: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("placeholder %s: %w", placeholderID, storage.ErrNotFound)
	}
	return nil
}

// ==================== Settlement Store ====================

func (s *Store) CreateSettlement(ctx context.Context, st *models.Settlement) error {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	if st.CreatedAt == 0 {
		st.CreatedAt = time.Now().Unix()
	}
	if _, err := s.db.Collection(colSettlements).InsertOne(ctx, toSettlementModel(st)); err != nil {
		return fmt.Errorf("contri/mongo: create settlement: %w", err)
	}
	return nil
}

func (s *Store) ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	cursor, err := s.db.Collection(colSettlements).Find(ctx,
		bson.M{"group_id": groupID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("contri/mongo: list settlements: %w", err)
	}
	var ms []settlementModel
	if err := cursor.All(ctx, &ms); err != nil {
		return nil, fmt.Errorf("contri/mongo: decode settlements: %w", err)
	}
	out := make([]*models.Settlement, len(ms))
	for i := range ms {
		out[i] = fromSettlementModel(&ms[i])
	}
	return out, nil
}

// ==================== Helpers ====================

func notFound(err error, what, key string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", what, key, storage.ErrNotFound)
	}
	return fmt.Errorf("contri/mongo: get %s: %w", what, err)
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colGroups: {
			{Keys: bson.D{{Key: "members.id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colExpenses: {
			{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colUsers: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "phone", Value: 1}}},
		},
		colPlaceholders: {
			{Keys: bson.D{{Key: "phone", Value: 1}}},
		},
		colSettlements: {
			{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}
