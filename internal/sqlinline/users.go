package sqlinline

const QSelectUserStanding = `--sql 92062e63-37e6-46d7-8328-ee0c8b0fd3d7
select standing
from users
where id = $1::text;
`

const QSelectUserByID = `--sql 69775ff8-3682-43ba-8777-b2cf4236b3cc
select id, email, name, plan, standing, created_at, updated_at
from users
where id = $1::text;
`

const QSelectUserByEmail = `--sql 6ab744d9-c69e-4c4b-8fb6-9490b3c24dcb
select id, email, name, plan, standing, created_at, updated_at
from users
where lower(email) = lower($1::text);
`

const QUpdateUserStanding = `--sql 251e86db-66ba-46f8-8172-d2de4a05431d
update users
set standing = $2::text,
    updated_at = now()
where id = $1::text
returning id, email, name, plan, standing, created_at, updated_at;
`
