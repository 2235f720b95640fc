// Package mongodb implements store.Store on MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/harentsoaR/dermacare-api/internal/models"
	"github.com/harentsoaR/dermacare-api/internal/store"
)

const (
	colUsers        = "users"
	colSessions     = "sessions"
	colProfiles     = "patient_profiles"
	colDoctors      = "doctors"
	colReports      = "reports"
	colAppointments = "appointments"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Store = (*Store)(nil)

// Connect dials uri, selects database and makes sure the indexes exist.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	s := &Store{client: client, db: client.Database(database)}
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	idx := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colSessions: {
			{Keys: bson.D{{Key: "refreshHash", Value: 1}}},
		},
		colReports: {
			{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		colAppointments: {
			{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
	for col, models := range idx {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter any) (*T, error) {
	var out T
	if err := col.FindOne(ctx, filter).Decode(&out); err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.Collection(colUsers).InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, s.db.Collection(colUsers), bson.M{"email": email})
}

func (s *Store) UserByID(ctx context.Context, id string) (*models.User, error) {
	return findOne[models.User](ctx, s.db.Collection(colUsers), bson.M{"_id": id})
}

// --- sessions ---

func (s *Store) PutSession(ctx context.Context, rec *models.SessionRecord) error {
	_, err := s.db.Collection(colSessions).ReplaceOne(ctx,
		bson.M{"_id": rec.UserID}, rec, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) RotateSession(ctx context.Context, prevRefreshHash string, next *models.SessionRecord) error {
	res, err := s.db.Collection(colSessions).ReplaceOne(ctx,
		bson.M{"_id": next.UserID, "refreshHash": prevRefreshHash}, next)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrStale
	}
	return nil
}

func (s *Store) SessionByUser(ctx context.Context, userID string) (*models.SessionRecord, error) {
	return findOne[models.SessionRecord](ctx, s.db.Collection(colSessions), bson.M{"_id": userID})
}

func (s *Store) SessionByRefreshHash(ctx context.Context, hash string) (*models.SessionRecord, error) {
	return findOne[models.SessionRecord](ctx, s.db.Collection(colSessions), bson.M{"refreshHash": hash})
}

func (s *Store) DeleteSession(ctx context.Context, userID, sessionID string) error {
	_, err := s.db.Collection(colSessions).DeleteOne(ctx, bson.M{"_id": userID, "sessionId": sessionID})
	return err
}

// --- profiles ---

func (s *Store) UpsertProfile(ctx context.Context, p *models.PatientProfile) error {
	_, err := s.db.Collection(colProfiles).ReplaceOne(ctx,
		bson.M{"_id": p.UserID}, p, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) ProfileByUser(ctx context.Context, userID string) (*models.PatientProfile, error) {
	return findOne[models.PatientProfile](ctx, s.db.Collection(colProfiles), bson.M{"_id": userID})
}

// --- doctors ---

func (s *Store) UpsertDoctor(ctx context.Context, d *models.Doctor) error {
	_, err := s.db.Collection(colDoctors).ReplaceOne(ctx,
		bson.M{"_id": d.ID}, d, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) DoctorByID(ctx context.Context, id string) (*models.Doctor, error) {
	return findOne[models.Doctor](ctx, s.db.Collection(colDoctors), bson.M{"_id": id})
}

func (s *Store) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return findAll[models.Doctor](ctx, s.db.Collection(colDoctors), bson.M{}, opts)
}

// --- reports ---

func (s *Store) CreateReport(ctx context.Context, r *models.Report) error {
	_, err := s.db.Collection(colReports).InsertOne(ctx, r)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *Store) ReportByID(ctx context.Context, id string) (*models.Report, error) {
	return findOne[models.Report](ctx, s.db.Collection(colReports), bson.M{"_id": id})
}

func (s *Store) ReportsByPatient(ctx context.Context, patientID string) ([]models.Report, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	return findAll[models.Report](ctx, s.db.Collection(colReports), bson.M{"patientId": patientID}, opts)
}

// --- appointments ---

func (s *Store) CreateAppointment(ctx context.Context, a *models.Appointment) error {
	_, err := s.db.Collection(colAppointments).InsertOne(ctx, a)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *Store) AppointmentByID(ctx context.Context, id string) (*models.Appointment, error) {
	return findOne[models.Appointment](ctx, s.db.Collection(colAppointments), bson.M{"_id": id})
}

func (s *Store) AppointmentsForUser(ctx context.Context, userID string) ([]models.Appointment, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"patientId": userID},
		bson.M{"doctorId": userID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	return findAll[models.Appointment](ctx, s.db.Collection(colAppointments), filter, opts)
}

// CompareAndSwapStatus matches on status and version in the update filter,
// so the check and the write are a single atomic document operation.
func (s *Store) CompareAndSwapStatus(ctx context.Context, id string, from models.AppointmentStatus, version int64, t models.Transition) (*models.Appointment, error) {
	col := s.db.Collection(colAppointments)
	var out models.Appointment
	err := col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from, "version": version},
		transitionUpdate(t),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err == nil {
		return &out, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	n, cerr := col.CountDocuments(ctx, bson.M{"_id": id})
	if cerr != nil {
		return nil, cerr
	}
	if n == 0 {
		return nil, store.ErrNotFound
	}
	return nil, store.ErrStale
}

// transitionUpdate sets the new status and bumps the version. Empty reason
// fields leave the stored values alone.
func transitionUpdate(t models.Transition) bson.M {
	set := bson.M{
		"status":    t.To,
		"updatedAt": t.UpdatedAt,
	}
	if t.DeclineReason != "" {
		set["declineReason"] = t.DeclineReason
	}
	if t.CancelledBy != "" {
		set["cancelledBy"] = t.CancelledBy
	}
	return bson.M{"$set": set, "$inc": bson.M{"version": 1}}
}
