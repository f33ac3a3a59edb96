package queue

import "github.com/go-redis/redis/v8"

// KEYS: wait, active, delayed. ARGV: now ms, lock token, lock ms, key prefix.
var reserveScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[3], '-inf', ARGV[1])
for _, id in ipairs(due) do
  redis.call('ZREM', KEYS[3], id)
  redis.call('LPUSH', KEYS[1], id)
  redis.call('HSET', ARGV[4] .. 'job:' .. id, 'state', 'waiting')
end
local id = redis.call('RPOPLPUSH', KEYS[1], KEYS[2])
if not id then
  return false
end
redis.call('SET', ARGV[4] .. 'lock:' .. id, ARGV[2], 'PX', ARGV[3])
redis.call('HSET', ARGV[4] .. 'job:' .. id, 'state', 'active', 'processedOn', ARGV[1])
return id
`)

// KEYS: active, completed, lock, job. ARGV: id, token, now ms, return value, keep, key prefix.
var completeScript = redis.NewScript(`
if redis.call('GET', KEYS[3]) ~= ARGV[2] then
  return -1
end
redis.call('LREM', KEYS[1], 0, ARGV[1])
redis.call('DEL', KEYS[3])
redis.call('HSET', KEYS[4], 'state', 'completed', 'returnvalue', ARGV[4], 'finishedOn', ARGV[3])
redis.call('HINCRBY', KEYS[4], 'attemptsMade', 1)
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
local keep = tonumber(ARGV[5])
if keep >= 0 then
  local extra = redis.call('ZCARD', KEYS[2]) - keep
  if extra > 0 then
    local old = redis.call('ZRANGE', KEYS[2], 0, extra - 1)
    for _, oid in ipairs(old) do
      redis.call('DEL', ARGV[6] .. 'job:' .. oid)
    end
    redis.call('ZREMRANGEBYRANK', KEYS[2], 0, extra - 1)
  end
end
return 1
`)

// KEYS: active, delayed, failed, lock, job.
// ARGV: id, token, now ms, reason, attempts made, retry at ms (0 = final), keep, key prefix.
var failScript = redis.NewScript(`
if redis.call('GET', KEYS[4]) ~= ARGV[2] then
  return -1
end
redis.call('LREM', KEYS[1], 0, ARGV[1])
redis.call('DEL', KEYS[4])
redis.call('HSET', KEYS[5], 'failedReason', ARGV[4], 'attemptsMade', ARGV[5])
if tonumber(ARGV[6]) > 0 then
  redis.call('HSET', KEYS[5], 'state', 'delayed', 'delayedUntil', ARGV[6])
  redis.call('ZADD', KEYS[2], ARGV[6], ARGV[1])
  return 2
end
redis.call('HSET', KEYS[5], 'state', 'failed', 'finishedOn', ARGV[3])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
local keep = tonumber(ARGV[7])
if keep >= 0 then
  local extra = redis.call('ZCARD', KEYS[3]) - keep
  if extra > 0 then
    local old = redis.call('ZRANGE', KEYS[3], 0, extra - 1)
    for _, oid in ipairs(old) do
      redis.call('DEL', ARGV[8] .. 'job:' .. oid)
    end
    redis.call('ZREMRANGEBYRANK', KEYS[3], 0, extra - 1)
  end
end
return 1
`)

// KEYS: lock. ARGV: token, lock ms.
var extendLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// KEYS: active, wait. ARGV: key prefix.
var stalledScript = redis.NewScript(`
local ids = redis.call('LRANGE', KEYS[1], 0, -1)
local moved = {}
for _, id in ipairs(ids) do
  if redis.call('EXISTS', ARGV[1] .. 'lock:' .. id) == 0 then
    redis.call('LREM', KEYS[1], 0, id)
    redis.call('RPUSH', KEYS[2], id)
    redis.call('HSET', ARGV[1] .. 'job:' .. id, 'state', 'waiting')
    redis.call('HINCRBY', ARGV[1] .. 'job:' .. id, 'stalledCounter', 1)
    table.insert(moved, id)
  end
end
return moved
`)
