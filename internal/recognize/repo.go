package recognize

import (
	"context"
	"database/sql"
	"time"

	"github.com/pgvector/pgvector-go"
)

// EnrolledFace is one stored reference embedding row.
type EnrolledFace struct {
	ID         int64
	PersonID   int64
	StationID  int64
	Filename   string
	Embedding  []float32
	Confidence float64
	CreatedAt  time.Time
}

// Repository persists enrolled face embeddings in Postgres. Embeddings are
// stored as pgvector columns so the database keeps them typed and
// dimensioned instead of opaque text blobs.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertFace stores one reference embedding for a person.
func (r *Repository) InsertFace(ctx context.Context, personID int64, filename string, embedding []float32, confidence float64) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO enrolled_faces (personnel_id, filename, embedding, confidence)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, personID, filename, pgvector.NewVector(embedding), confidence).Scan(&id)
	return id, err
}

// ListFaces returns every enrolled face with the owner's station, used to
// build the in-memory matching database.
func (r *Repository) ListFaces(ctx context.Context) ([]EnrolledFace, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT f.id, f.personnel_id, p.station_id, f.filename, f.embedding, f.confidence, f.created_at
		FROM enrolled_faces f
		JOIN personnel p ON p.id = f.personnel_id
		ORDER BY f.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var faces []EnrolledFace
	for rows.Next() {
		var f EnrolledFace
		var vec pgvector.Vector
		if err := rows.Scan(&f.ID, &f.PersonID, &f.StationID, &f.Filename, &vec, &f.Confidence, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Embedding = vec.Slice()
		faces = append(faces, f)
	}
	return faces, rows.Err()
}

// CountForPerson returns how many reference embeddings a person has.
func (r *Repository) CountForPerson(ctx context.Context, personID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM enrolled_faces WHERE personnel_id = $1
	`, personID).Scan(&count)
	return count, err
}
