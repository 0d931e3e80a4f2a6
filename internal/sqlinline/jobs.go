package sqlinline

const jobColumns = `id, owner_id, input_refs, style_parameters, provider, status, versions,
  attempts, max_attempts, last_attempt_at, retry_after, locked_by, locked_at,
  pending_version_id, error, created_at, updated_at`

const QInsertGenerationJob = `--sql 53b946eb-1c7f-40a3-89d7-f982c923c435
insert into generation_jobs (
  id, owner_id, input_refs, style_parameters, provider, status, versions,
  attempts, max_attempts, created_at, updated_at
)
values ($1::text, $2::text, $3::jsonb, $4::jsonb, $5::jsonb, 'queued', '[]'::jsonb, 0, $6::int, $7::timestamptz, $7::timestamptz)
on conflict (id) do nothing;
`

const QSelectGenerationJob = `--sql f0f97554-1bf0-4013-9329-c4cb84c25940
select ` + jobColumns + `
from generation_jobs
where id = $1::text;
`

// QAcquireGenerationJobLock args: id, execution id, now, stale-before, version id ('' for next).
// Returns the version id reserved for this lock; no row means the lock was not taken.
const QAcquireGenerationJobLock = `--sql 8f6a63f2-f5d5-4230-844a-052722699863
update generation_jobs
set status = 'running',
    locked_by = $2::text,
    locked_at = $3::timestamptz,
    pending_version_id = coalesce(nullif($5::text, ''), 'v' || (jsonb_array_length(versions) + 1)),
    attempts = attempts + 1,
    last_attempt_at = $3::timestamptz,
    retry_after = null,
    updated_at = $3::timestamptz
where id = $1::text
  and status in ('queued', 'running')
  and (locked_at is null or locked_at < $4::timestamptz)
  and (retry_after is null or retry_after <= $3::timestamptz)
  and (
    $5::text = ''
    or not versions @> jsonb_build_array(jsonb_build_object('version_id', $5::text))
  )
returning pending_version_id;
`

// QAppendGenerationJobVersion args: id, version id, artifact refs, provider request id, now.
// Only a running job accepts a version; zero rows means nothing was appended.
const QAppendGenerationJobVersion = `--sql 252df3ae-288f-4f72-a507-f466fbbe308e
update generation_jobs
set versions = versions || jsonb_build_array(jsonb_build_object(
      'version_id', $2::text,
      'artifact_refs', $3::jsonb,
      'created_at', $5::timestamptz
    )),
    status = 'succeeded',
    locked_by = null,
    locked_at = null,
    pending_version_id = null,
    retry_after = null,
    error = null,
    provider = case
      when $4::text = '' then provider
      else jsonb_set(provider, '{request_ids}', coalesce(provider->'request_ids', '[]'::jsonb) || to_jsonb($4::text))
    end,
    updated_at = $5::timestamptz
where id = $1::text
  and status = 'running'
  and not versions @> jsonb_build_array(jsonb_build_object('version_id', $2::text));
`

// QRecordGenerationJobFailure args: id, execution id, status, retry after, error, provider request id, now.
const QRecordGenerationJobFailure = `--sql 4c1c246b-50ed-4bb6-bedd-0ec299796491
update generation_jobs
set status = $3::text,
    locked_by = null,
    locked_at = null,
    pending_version_id = null,
    retry_after = case when $3::text = 'queued' then $4::timestamptz else null end,
    error = $5::jsonb,
    provider = case
      when $6::text = '' then provider
      else jsonb_set(provider, '{request_ids}', coalesce(provider->'request_ids', '[]'::jsonb) || to_jsonb($6::text))
    end,
    updated_at = $7::timestamptz
where id = $1::text
  and status = 'running'
  and locked_by = $2::text;
`

const QReleaseGenerationJobLock = `--sql 33eb4f19-6eab-4c15-89de-671a74fce0dd
update generation_jobs
set status = 'queued',
    locked_by = null,
    locked_at = null,
    pending_version_id = null,
    updated_at = $3::timestamptz
where id = $1::text
  and status = 'running'
  and locked_by = $2::text;
`

// QListRecoverableGenerationJobs args: now, stale-before, limit.
const QListRecoverableGenerationJobs = `--sql 0dd0dc54-641c-4d6d-8bc8-b0ad1e3543cd
select ` + jobColumns + `
from generation_jobs
where (status = 'queued' and (retry_after is null or retry_after <= $1::timestamptz))
   or (status = 'running' and locked_at < $2::timestamptz)
order by updated_at asc, id asc
limit $3::int;
`
