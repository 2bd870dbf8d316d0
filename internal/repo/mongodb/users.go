package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/herapt/internal/domain/user"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usersCollection = "users"

type DBObserver interface {
	ObserveDB(op string, fn func() error) error
}

type noopObserver struct{}

func (noopObserver) ObserveDB(_ string, fn func() error) error { return fn() }

// Field names follow the existing collection layout so old documents stay readable.
type userDocument struct {
	ID                    primitive.ObjectID       `bson:"_id,omitempty"`
	Name                  string                   `bson:"name"`
	Email                 string                   `bson:"email"`
	Password              string                   `bson:"password,omitempty"`
	Role                  string                   `bson:"role"`
	Profile               profileDocument          `bson:"profile"`
	CareerRecommendations []recommendationDocument `bson:"careerRecommendations"`
	MentorMatches         []matchDocument          `bson:"mentorMatches"`
	CreatedAt             time.Time                `bson:"createdAt"`
}

type profileDocument struct {
	Education        string   `bson:"education,omitempty"`
	Experience       string   `bson:"experience,omitempty"`
	CurrentRole      string   `bson:"currentRole,omitempty"`
	Skills           []string `bson:"skills,omitempty"`
	Interests        []string `bson:"interests,omitempty"`
	CareerGoals      string   `bson:"careerGoals,omitempty"`
	CareerBreakYears *float64 `bson:"careerBreakYears,omitempty"`
	Bio              string   `bson:"bio,omitempty"`
	Expertise        []string `bson:"expertise,omitempty"`
	Availability     string   `bson:"availability,omitempty"`
}

type recommendationDocument struct {
	CareerPath string    `bson:"careerPath"`
	Confidence float64   `bson:"confidence"`
	Skills     []string  `bson:"skills"`
	Timestamp  time.Time `bson:"timestamp"`
}

type matchDocument struct {
	MentorID           primitive.ObjectID `bson:"mentorId"`
	CompatibilityScore float64            `bson:"compatibilityScore"`
	Timestamp          time.Time          `bson:"timestamp"`
}

var withoutPassword = bson.M{"password": 0}

type UsersRepo struct {
	client *mongo.Client
	coll   *mongo.Collection
	obs    DBObserver
}

// Connect dials MongoDB, verifies the connection and ensures the unique email index.
func Connect(ctx context.Context, uri, database string, obs DBObserver) (*UsersRepo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	r := NewUsersRepo(client, client.Database(database).Collection(usersCollection), obs)

	if err := r.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return r, nil
}

func NewUsersRepo(client *mongo.Client, coll *mongo.Collection, obs DBObserver) *UsersRepo {
	if obs == nil {
		obs = noopObserver{}
	}
	return &UsersRepo{client: client, coll: coll, obs: obs}
}

func (r *UsersRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "role", Value: 1}, {Key: "mentorMatches.mentorId", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}
	return nil
}

func (r *UsersRepo) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

func (r *UsersRepo) Create(ctx context.Context, in user.CreateUserInput) (user.User, error) {
	doc := userDocument{
		ID:                    primitive.NewObjectID(),
		Name:                  in.Name,
		Email:                 user.NormalizeEmail(in.Email),
		Password:              in.PasswordHash,
		Role:                  string(in.Role),
		CareerRecommendations: []recommendationDocument{},
		MentorMatches:         []matchDocument{},
		CreatedAt:             time.Now().UTC().Truncate(time.Millisecond),
	}

	err := r.obs.ObserveDB("users.create", func() error {
		_, err := r.coll.InsertOne(ctx, doc)
		return err
	})

	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}

	return doc.toDomain(), nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_email", bson.M{"email": user.NormalizeEmail(email)}, nil)
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return user.User{}, user.ErrNotFound
	}

	return r.findOne(ctx, "users.get_by_id", bson.M{"_id": oid}, withoutPassword)
}

func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, p user.Profile) (user.User, error) {
	return r.set(ctx, "users.update_profile", id, bson.M{"profile": profileFromDomain(p)})
}

func (r *UsersRepo) SetCareerRecommendations(ctx context.Context, id string, recs []user.CareerRecommendation) (user.User, error) {
	docs := make([]recommendationDocument, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, recommendationDocument(rec))
	}

	return r.set(ctx, "users.set_recommendations", id, bson.M{"careerRecommendations": docs})
}

func (r *UsersRepo) SetMentorMatches(ctx context.Context, id string, matches []user.MentorMatch) (user.User, error) {
	return r.set(ctx, "users.set_matches", id, bson.M{"mentorMatches": matchDocuments(matches)})
}

// matchDocuments skips ids that are not ObjectIDs; no mentor document can carry one.
func matchDocuments(matches []user.MentorMatch) []matchDocument {
	docs := make([]matchDocument, 0, len(matches))
	for _, m := range matches {
		oid, err := primitive.ObjectIDFromHex(m.MentorID)
		if err != nil {
			continue
		}
		docs = append(docs, matchDocument{MentorID: oid, CompatibilityScore: m.CompatibilityScore, Timestamp: m.Timestamp})
	}
	return docs
}

func (r *UsersRepo) ListByRole(ctx context.Context, role user.Role) ([]user.User, error) {
	return r.find(ctx, "users.list_by_role", bson.M{"role": string(role)})
}

func (r *UsersRepo) ListMenteesMatchedTo(ctx context.Context, mentorID string) ([]user.User, error) {
	oid, err := primitive.ObjectIDFromHex(mentorID)
	if err != nil {
		return []user.User{}, nil
	}

	return r.find(ctx, "users.list_mentees_for_mentor", bson.M{
		"role":                   string(user.RoleMentee),
		"mentorMatches.mentorId": oid,
	})
}

func (r *UsersRepo) findOne(ctx context.Context, op string, filter bson.M, projection bson.M) (user.User, error) {
	var doc userDocument

	err := r.obs.ObserveDB(op, func() error {
		opts := options.FindOne()
		if projection != nil {
			opts.SetProjection(projection)
		}
		return r.coll.FindOne(ctx, filter, opts).Decode(&doc)
	})

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return doc.toDomain(), nil
}

func (r *UsersRepo) set(ctx context.Context, op, id string, fields bson.M) (user.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return user.User{}, user.ErrNotFound
	}

	var doc userDocument

	err = r.obs.ObserveDB(op, func() error {
		opts := options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(withoutPassword)

		return r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": fields}, opts).Decode(&doc)
	})

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return doc.toDomain(), nil
}

func (r *UsersRepo) find(ctx context.Context, op string, filter bson.M) ([]user.User, error) {
	var docs []userDocument

	err := r.obs.ObserveDB(op, func() error {
		opts := options.Find().
			SetProjection(withoutPassword).
			SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

		cur, err := r.coll.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		return cur.All(ctx, &docs)
	})

	if err != nil {
		return nil, err
	}

	out := make([]user.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (d userDocument) toDomain() user.User {
	u := user.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.Password,
		Role:         user.Role(d.Role),
		Profile:      user.Profile(d.Profile),
		CreatedAt:    d.CreatedAt,

		CareerRecommendations: make([]user.CareerRecommendation, 0, len(d.CareerRecommendations)),
		MentorMatches:         make([]user.MentorMatch, 0, len(d.MentorMatches)),
	}

	for _, rec := range d.CareerRecommendations {
		u.CareerRecommendations = append(u.CareerRecommendations, user.CareerRecommendation(rec))
	}

	for _, m := range d.MentorMatches {
		u.MentorMatches = append(u.MentorMatches, user.MentorMatch{
			MentorID:           m.MentorID.Hex(),
			CompatibilityScore: m.CompatibilityScore,
			Timestamp:          m.Timestamp,
		})
	}

	return u
}

func profileFromDomain(p user.Profile) profileDocument {
	return profileDocument(p)
}
