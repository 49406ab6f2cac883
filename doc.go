/*
Package ddns keeps the address records of domains hosted on Gandi LiveDNS in sync with the host's current addresses.

Usage will always start with [ddns.New],
which takes the domains to manage and returns a [Client].
A [Provider] must be registered, normally with [UsingLiveDNS].
IPv4 and IPv6 are independent: each family has its own [Resolver],
drives only its own record type (A or AAAA),
and is skipped entirely when no address is discovered for it.

[Client.Run] performs one reconciliation and reports whether any record changed.
Scheduling repeated runs is left to the caller (cron, systemd timers, etc.).
*/
package ddns
