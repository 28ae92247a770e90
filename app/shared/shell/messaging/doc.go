// Package messaging publishes library notifications to an AMQP topic exchange.
//
// Every committed catalog or lending mutation produces one persistent JSON message. The
// notification name (library.book.borrowed, ...) is the routing key, so consumers bind
// queues to patterns like "library.book.*". Publishing is best-effort: failures are logged
// and never reach the command handler that triggered them.
package messaging
