// Package accounts implements the user account resource: public profiles,
// follow relationships, activity feeds and notifications, plus the two
// signed-link flows that confirm ownership of an email address.
//
// Signed links:
//   - Account activation and email change confirmation are driven by URLs
//     produced by the signedlink package. Nothing is stored when a link is
//     issued; the link carries its parameters, an expiry and an HMAC
//     signature, and is re-validated when the user follows it.
//   - Both confirmation endpoints are public. They always answer with a
//     redirect to the configured site URL carrying `active-success=yes|no`
//     and `type=register|email`, never with an error page.
//
// User lifecycle:
//   - Users carry a UserStatus persisted via Bun. UserStateMachine owns the
//     transition graph (pending, active, suspended, disabled, archived) and
//     publishes an ActivityEvent for every transition it applies.
//
// Notifications:
//   - Notifier fans a Notification out to the database channel (rows in the
//     notifications table) and the mail channel (rendered through the mailer
//     package). Mail delivery can be made asynchronous with
//     WithAsyncDelivery.
package accounts
