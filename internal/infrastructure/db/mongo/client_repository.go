package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clientportal/client-service/internal/core/domain"
	"github.com/clientportal/client-service/internal/core/ports"
)

const (
	collectionClients = "clients"

	indexEmail      = "uniq_email"
	indexExternalID = "uniq_external_id"
)

// withoutPassword is applied to every read that is not part of the login path.
var withoutPassword = bson.M{"password": 0}

// ClientRepository implements ports.ClientRepository using MongoDB.
type ClientRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewClientRepository(db *mongo.Database) *ClientRepository {
	return &ClientRepository{
		col: db.Collection(collectionClients),
		now: func() time.Time { return time.Now().UTC() },
	}
}

type clientDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Email       string             `bson:"email"`
	Password    string             `bson:"password,omitempty"`
	GoogleID    string             `bson:"google_id,omitempty"`
	FirstName   string             `bson:"first_name"`
	LastName    string             `bson:"last_name"`
	PhoneNumber string             `bson:"phone_number"`
	Address     string             `bson:"address"`
	LogoURL     string             `bson:"logo_url,omitempty"`
	StampURL    string             `bson:"stamp_url,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func (d *clientDocument) toDomain() *domain.Client {
	return &domain.Client{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		PasswordHash: d.Password,
		ExternalID:   d.GoogleID,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		PhoneNumber:  d.PhoneNumber,
		Address:      d.Address,
		LogoPath:     d.LogoURL,
		StampPath:    d.StampURL,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// Insert persists a new client. Uniqueness of email and google_id is enforced
// by unique indexes, so concurrent duplicates fail inside the server.
func (r *ClientRepository) Insert(ctx context.Context, c *domain.Client) (*domain.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := r.now()
	doc := clientDocument{
		ID:          primitive.NewObjectID(),
		Email:       domain.NormalizeEmail(c.Email),
		Password:    c.PasswordHash,
		GoogleID:    c.ExternalID,
		FirstName:   strings.TrimSpace(c.FirstName),
		LastName:    strings.TrimSpace(c.LastName),
		PhoneNumber: c.PhoneNumber,
		Address:     strings.TrimSpace(c.Address),
		LogoURL:     c.LogoPath,
		StampURL:    c.StampPath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, classify("insert client", err)
	}
	return doc.toDomain(), nil
}

func (r *ClientRepository) FindByID(ctx context.Context, id string) (*domain.Client, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrClientNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid}, options.FindOne().SetProjection(withoutPassword))
}

func (r *ClientRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.Client, error) {
	if externalID == "" {
		return nil, domain.ErrClientNotFound
	}
	return r.findOne(ctx, bson.M{"google_id": externalID}, options.FindOne().SetProjection(withoutPassword))
}

// FindCredentialsByEmail returns the client including its password digest.
func (r *ClientRepository) FindCredentialsByEmail(ctx context.Context, email string) (*domain.Client, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, domain.ErrClientNotFound
	}
	return r.findOne(ctx, bson.M{"email": email}, options.FindOne())
}

func (r *ClientRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*domain.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc clientDocument
	if err := r.col.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrClientNotFound
		}
		return nil, classify("find client", err)
	}
	return doc.toDomain(), nil
}

// Update applies the set slots of update and returns the updated client.
func (r *ClientRepository) Update(ctx context.Context, id string, update domain.ClientUpdate) (*domain.Client, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrClientNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := updateDocument(update)
	set["updated_at"] = r.now()

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(withoutPassword)

	var doc clientDocument
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrClientNotFound
		}
		return nil, classify("update client", err)
	}
	return doc.toDomain(), nil
}

// SetPasswordHash replaces the stored digest.
func (r *ClientRepository) SetPasswordHash(ctx context.Context, id, hash string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrClientNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"password":   hash,
		"updated_at": r.now(),
	}})
	if err != nil {
		return classify("set password", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrClientNotFound
	}
	return nil
}

// Delete removes the client and returns the removed record.
func (r *ClientRepository) Delete(ctx context.Context, id string) (*domain.Client, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrClientNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc clientDocument
	opts := options.FindOneAndDelete().SetProjection(withoutPassword)
	if err := r.col.FindOneAndDelete(ctx, bson.M{"_id": oid}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrClientNotFound
		}
		return nil, classify("delete client", err)
	}
	return doc.toDomain(), nil
}

// List returns a page of clients, newest first, and the total count.
func (r *ClientRepository) List(ctx context.Context, filter ports.ListClientsFilter) ([]*domain.Client, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	total, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, classify("count clients", err)
	}

	skip := int64((filter.Page - 1) * filter.Limit)
	opts := options.Find().
		SetProjection(withoutPassword).
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(int64(filter.Limit))

	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, classify("list clients", err)
	}
	defer cur.Close(ctx)

	var docs []clientDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, classify("decode clients", err)
	}

	out := make([]*domain.Client, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, total, nil
}

// EnsureIndexes creates the unique indexes the repository relies on.
// google_id is sparse: any number of clients may have none, but no two may
// share one.
func (r *ClientRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(indexEmail).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "google_id", Value: 1}},
			Options: options.Index().SetName(indexExternalID).SetUnique(true).SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}

	if _, err := r.col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("ensure client indexes: %w", err)
	}
	return nil
}

func updateDocument(u domain.ClientUpdate) bson.M {
	set := bson.M{}
	if u.FirstName != nil {
		set["first_name"] = strings.TrimSpace(*u.FirstName)
	}
	if u.LastName != nil {
		set["last_name"] = strings.TrimSpace(*u.LastName)
	}
	if u.Email != nil {
		set["email"] = domain.NormalizeEmail(*u.Email)
	}
	if u.PhoneNumber != nil {
		set["phone_number"] = *u.PhoneNumber
	}
	if u.Address != nil {
		set["address"] = strings.TrimSpace(*u.Address)
	}
	if u.LogoPath != nil {
		set["logo_url"] = *u.LogoPath
	}
	if u.StampPath != nil {
		set["stamp_url"] = *u.StampPath
	}
	return set
}

// classify maps driver errors onto domain errors. Duplicate key errors are
// attributed to the index that rejected the write.
func classify(op string, err error) error {
	switch {
	case mongo.IsDuplicateKeyError(err):
		switch duplicateIndex(err) {
		case indexExternalID:
			return domain.ErrDuplicateExternalID
		case indexEmail:
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("%s: %w", op, err)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStorageUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// duplicateIndex returns the index named by a duplicate key error. The server
// message reads "... index: <name> dup key: { ... }"; only the token after
// the first "index: " is taken, since the key value may contain anything.
func duplicateIndex(err error) string {
	var msgs []string

	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			msgs = append(msgs, e.Message)
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			msgs = append(msgs, e.Message)
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		msgs = append(msgs, ce.Message)
	}

	for _, msg := range msgs {
		_, rest, ok := strings.Cut(msg, "index: ")
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(rest, " ")
		return name
	}
	return ""
}
