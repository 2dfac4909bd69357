package sqlinline

const QEnsureGenerationsTable = `--sql 3d1c6a8e-5b7f-4c2a-9e41-0f8b2d6c7a93
create table if not exists generations (
  id           uuid primary key,
  request_id   text not null default '',
  prompt       text not null,
  size         text not null,
  strategy     text not null,
  requested    int not null,
  succeeded    int not null,
  failed       int not null,
  duration_ms  bigint not null,
  locale       text not null default '',
  country      text not null default '',
  created_at   timestamptz not null default now()
);
`

const QInsertGeneration = `--sql a47e0b19-2f6d-4c83-b5e2-8d91c3f04a6e
insert into generations(
  id,
  request_id,
  prompt,
  size,
  strategy,
  requested,
  succeeded,
  failed,
  duration_ms,
  locale,
  country,
  created_at
) values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::text,
  $5::text,
  $6::int,
  $7::int,
  $8::int,
  $9::bigint,
  $10::text,
  $11::text,
  $12::timestamptz
);
`

const QListRecentGenerations = `--sql 5f2b8d04-91ce-4e7a-a6b3-c0d7e4f81295
select id, request_id, prompt, size, strategy, requested, succeeded, failed, duration_ms, locale, country, created_at
from generations
order by created_at desc
limit $1::int;
`
