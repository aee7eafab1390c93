package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: ENROLLMENTS AND TASKS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Programs' tasks. Immutable after program publication.
CREATE TABLE IF NOT EXISTS tasks (
    id UUID PRIMARY KEY,
    program_id UUID NOT NULL,
    title VARCHAR(200) NOT NULL,
    task_order INTEGER NOT NULL,
    is_mandatory BOOLEAN NOT NULL DEFAULT TRUE,

    CONSTRAINT valid_task_order CHECK (task_order >= 1),
    CONSTRAINT tasks_program_order_key UNIQUE (program_id, task_order)
);

CREATE INDEX IF NOT EXISTS idx_tasks_program_id ON tasks(program_id, task_order);

-- Student enrollments into paid programs.
CREATE TABLE IF NOT EXISTS enrollments (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL,
    program_id UUID NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
    progress_percentage DECIMAL(5,2) NOT NULL DEFAULT 0,
    payment_status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
    payment_amount BIGINT NOT NULL,
    currency CHAR(3) NOT NULL,
    certificate_issued BOOLEAN NOT NULL DEFAULT FALSE,
    enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('ACTIVE', 'COMPLETED', 'CANCELLED')),
    CONSTRAINT valid_payment_status CHECK (payment_status IN ('PENDING', 'COMPLETED', 'FAILED', 'REFUNDED')),
    CONSTRAINT valid_progress CHECK (progress_percentage >= 0 AND progress_percentage <= 100),
    CONSTRAINT valid_amount CHECK (payment_amount >= 0)
);

CREATE INDEX IF NOT EXISTS idx_enrollments_student_id ON enrollments(student_id);
CREATE INDEX IF NOT EXISTS idx_enrollments_program_id ON enrollments(program_id);
`

const migration001Down = `
DROP TABLE IF EXISTS enrollments;
DROP TABLE IF EXISTS tasks;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: SUBMISSIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Submission attempts. PENDING is the only non-terminal status; a retry
-- after rejection creates a new row.
CREATE TABLE IF NOT EXISTS submissions (
    id UUID PRIMARY KEY,
    enrollment_id UUID NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
    task_id UUID NOT NULL REFERENCES tasks(id),
    status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
    grade DECIMAL(4,2),
    feedback TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    submitted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    reviewed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED', 'NEEDS_REVISION')),
    CONSTRAINT valid_grade CHECK (grade IS NULL OR (grade >= 0 AND grade <= 10))
);

CREATE INDEX IF NOT EXISTS idx_submissions_enrollment_id ON submissions(enrollment_id);
CREATE INDEX IF NOT EXISTS idx_submissions_task_id ON submissions(task_id);

-- At most one pending submission per (enrollment, task).
CREATE UNIQUE INDEX IF NOT EXISTS submissions_pending_key
    ON submissions(enrollment_id, task_id) WHERE status = 'PENDING';
`

const migration002Down = `
DROP TABLE IF EXISTS submissions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: PAYMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS payments (
    id UUID PRIMARY KEY,
    enrollment_id UUID NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
    amount BIGINT NOT NULL,
    currency CHAR(3) NOT NULL,
    external_order_id VARCHAR(100) NOT NULL,
    external_payment_id VARCHAR(100) NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
    failure_reason TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    paid_at TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('PENDING', 'COMPLETED', 'FAILED', 'REFUNDED')),
    CONSTRAINT valid_amount CHECK (amount >= 0),
    CONSTRAINT payments_external_order_key UNIQUE (external_order_id)
);

CREATE INDEX IF NOT EXISTS idx_payments_enrollment_id ON payments(enrollment_id, created_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS payments;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CERTIFICATES
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Issued certificates. The unique constraint on enrollment_id backstops
-- concurrent issuance; revoked rows are kept for audit.
CREATE TABLE IF NOT EXISTS certificates (
    id UUID PRIMARY KEY,
    enrollment_id UUID NOT NULL REFERENCES enrollments(id),
    student_id UUID NOT NULL,
    number VARCHAR(30) NOT NULL,
    verification_hash CHAR(64) NOT NULL,
    student_name VARCHAR(200) NOT NULL,
    program_title VARCHAR(200) NOT NULL,
    completed_date TIMESTAMP WITH TIME ZONE NOT NULL,
    final_score DECIMAL(4,2) NOT NULL,
    document_url TEXT NOT NULL DEFAULT '',
    issued_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    is_valid BOOLEAN NOT NULL DEFAULT TRUE,
    revoked_at TIMESTAMP WITH TIME ZONE,
    revocation_reason TEXT NOT NULL DEFAULT '',
    revoked_by VARCHAR(100) NOT NULL DEFAULT '',

    CONSTRAINT valid_final_score CHECK (final_score >= 0 AND final_score <= 10),
    CONSTRAINT certificates_enrollment_key UNIQUE (enrollment_id),
    CONSTRAINT certificates_number_key UNIQUE (number),
    CONSTRAINT certificates_hash_key UNIQUE (verification_hash)
);

CREATE INDEX IF NOT EXISTS idx_certificates_student_id ON certificates(student_id);
`

const migration004Down = `
DROP TABLE IF EXISTS certificates;
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_enrollments_and_tasks", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_submissions", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_payments", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_certificates", UpSQL: migration004Up, DownSQL: migration004Down},
	}
}
